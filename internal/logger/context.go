package logger

// Component-specific logger functions

// CLI returns a logger for command line operations
func CLI() Logger {
	return WithField("component", "cli")
}

// DB returns a logger for database and migration operations
func DB() Logger {
	return WithField("component", "db")
}

// Todo returns a logger for todo ownership operations
func Todo() Logger {
	return WithField("component", "todo")
}

// User returns a logger for user directory operations
func User() Logger {
	return WithField("component", "user")
}

// Auth returns a logger for token and credential operations
func Auth() Logger {
	return WithField("component", "auth")
}

// Storage returns a logger for object storage operations
func Storage() Logger {
	return WithField("component", "storage")
}

// HTTP returns a logger for the API layer
func HTTP() Logger {
	return WithField("component", "http")
}
