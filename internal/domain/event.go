package domain

// Event is the ticketed event an order belongs to, loaded with its organizer and settings.
type Event struct {
	ID        int64
	AccountID int64
	Title     string
	Organizer Organizer
	Settings  EventSettings
}

type Organizer struct {
	ID    int64
	Name  string
	Email string
}

type EventSettings struct {
	SupportEmail        string
	PostCheckoutMessage string
}
