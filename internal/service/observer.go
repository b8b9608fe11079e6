package service

// Operation names reported to an Observer.
const (
	OpRegister       = "register"
	OpLogin          = "login"
	OpRefresh        = "refresh"
	OpLogout         = "logout"
	OpChangePassword = "change_password"
	OpCurrentUser    = "current_user"
	OpListUsers      = "list_users"
)

// Observer receives the outcome of every Auth operation. err is nil on success.
type Observer interface {
	ObserveAuth(operation string, err error)
}

type nopObserver struct{}

func (nopObserver) ObserveAuth(string, error) {}
