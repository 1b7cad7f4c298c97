package reservation

// Role は認証トークンの tipo クレームに対応する利用者種別
type Role string

const (
	RoleStudent    Role = "estudante"
	RoleProprietor Role = "proprietario"
	RoleOrganizer  Role = "organizador"
	RoleAdmin      Role = "admin"
)

// IsValid は既知の種別かを返す
func (r Role) IsValid() bool {
	switch r {
	case RoleStudent, RoleProprietor, RoleOrganizer, RoleAdmin:
		return true
	}
	return false
}

// Actor はリクエストを行う認証済み利用者
// ゲートウェイで検証済みの値をそのまま信頼する
type Actor struct {
	ID   string
	Role Role
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// IsRenter は予約を作成できる利用者（学生）かを返す
func (a Actor) IsRenter() bool {
	return a.Role == RoleStudent
}
