package models

// Address is the shipping address of a customer profile.
type Address struct {
	StreetAddress string `json:"streetAddress"`
	City          string `json:"city"`
	State         string `json:"state"`
	Country       string `json:"country"`
	ZipCode       string `json:"zipCode"`
}

// CreditCard is the payment instrument of a customer profile.
type CreditCard struct {
	CreditCardNumber          string `json:"creditCardNumber"`
	CreditCardCvv             int    `json:"creditCardCvv"`
	CreditCardExpirationYear  int    `json:"creditCardExpirationYear"`
	CreditCardExpirationMonth int    `json:"creditCardExpirationMonth"`
}

// Person is a synthetic customer profile. It doubles as the body of
// POST /api/checkout once UserID is set to the flow's session identifier.
type Person struct {
	Email        string     `json:"email"`
	Address      Address    `json:"address"`
	UserCurrency string     `json:"userCurrency"`
	CreditCard   CreditCard `json:"creditCard"`
	UserID       string     `json:"userId,omitempty"`
}

// ForSession returns a copy of p tagged with sessionID.
func (p Person) ForSession(sessionID string) Person {
	p.UserID = sessionID
	return p
}
