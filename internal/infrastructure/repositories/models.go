package repositories

// Models lists every gorm model owned by the gate, in migration order
func Models() []any {
	return []any{
		&DBUser{},
		&DBUserSecurity{},
		&DBOTPPolicy{},
		&DBSecurityEvent{},
	}
}
