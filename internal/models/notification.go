package models

// PushMessage is a single notification addressed to one device token.
type PushMessage struct {
	To    string            `json:"to"`
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
	Sound string            `json:"sound,omitempty"`
}

// EmailMessage is a plain reminder email.
type EmailMessage struct {
	ToEmail string
	ToName  string
	Subject string
	Body    string
}

// Notification is the unit dispatched by the notification queue. Either channel may be empty.
type Notification struct {
	Kind  string
	Push  *PushMessage
	Email *EmailMessage
}
