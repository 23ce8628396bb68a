package models

// Notification is a message for one user, handed to the notification
// service.
type Notification struct {
	UserID  string `json:"userId"`
	Message string `json:"message"`
	Link    string `json:"link,omitempty"`
}
