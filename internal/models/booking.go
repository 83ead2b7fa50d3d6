package models

import "time"

// Booking is one customer's reservation of one slot on one date for one sport.
// Bookings are never mutated after creation; cancellation removes them.
type Booking struct {
	ID              string    `json:"id"`
	BatchID         string    `json:"batch_id"`
	Date            string    `json:"date"`
	Slot            string    `json:"slot"`
	Sport           string    `json:"sport"`
	Ground          string    `json:"ground"`
	CustomerName    string    `json:"customer_name"`
	CustomerMobile  string    `json:"customer_mobile"`
	CustomerAddress string    `json:"customer_address,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// Block is an operator-imposed, sport-agnostic closure of a slot.
type Block struct {
	Date      string    `json:"date"`
	Slot      string    `json:"slot"`
	CreatedAt time.Time `json:"created_at"`
}

type Customer struct {
	Name    string `json:"name"`
	Mobile  string `json:"mobile"`
	Address string `json:"address,omitempty"`
}

// BookingBatch groups the bookings created by one successful booking attempt.
type BookingBatch struct {
	ID        string    `json:"id"`
	Date      string    `json:"date"`
	Sport     string    `json:"sport"`
	Ground    string    `json:"ground"`
	Customer  Customer  `json:"customer"`
	Bookings  []Booking `json:"bookings"`
	CreatedAt time.Time `json:"created_at"`
}

// Slots returns the slot labels of the batch in booking order.
func (b *BookingBatch) Slots() []string {
	slots := make([]string, 0, len(b.Bookings))
	for _, booking := range b.Bookings {
		slots = append(slots, booking.Slot)
	}
	return slots
}

// BatchFromBookings rebuilds a batch from stored bookings sharing one batch id.
func BatchFromBookings(bookings []Booking) *BookingBatch {
	if len(bookings) == 0 {
		return nil
	}
	first := bookings[0]
	batch := &BookingBatch{
		ID:     first.BatchID,
		Date:   first.Date,
		Sport:  first.Sport,
		Ground: first.Ground,
		Customer: Customer{
			Name:    first.CustomerName,
			Mobile:  first.CustomerMobile,
			Address: first.CustomerAddress,
		},
		Bookings:  append([]Booking(nil), bookings...),
		CreatedAt: first.CreatedAt,
	}
	SortBookings(batch.Bookings)
	return batch
}

type BlockState struct {
	Date    string `json:"date"`
	Slot    string `json:"slot"`
	Blocked bool   `json:"blocked"`
}
