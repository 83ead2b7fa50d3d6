package models

type BookingRequest struct {
	Date     string   `json:"date"`
	Slots    []string `json:"slots"`
	Sport    string   `json:"sport"`
	Customer Customer `json:"customer"`
}

// CancelRequest identifies bookings by the fields an operator sees in the admin view.
type CancelRequest struct {
	Date         string `json:"date"`
	Slot         string `json:"slot"`
	Sport        string `json:"sport"`
	CustomerName string `json:"customer_name"`
}

type CancelResult struct {
	Date      string    `json:"date"`
	Cancelled []Booking `json:"cancelled"`
}
