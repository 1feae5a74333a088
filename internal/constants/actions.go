package constants

const (
	Create        = "CREATE"
	Update        = "UPDATE"
	Delete        = "DELETE"
	Register      = "REGISTER"
	VerifyAccount = "VERIFY_ACCOUNT"
	RegisterAdmin = "REGISTER_ADMIN"
	Borrow        = "BORROW"
	Return        = "RETURN"
	Notify        = "NOTIFY"
)
