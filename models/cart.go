package models

// CartItem is one product line of a cart mutation.
type CartItem struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// AddToCartRequest is the body of POST /api/cart. UserID carries the
// session identifier that keys the server-side cart.
type AddToCartRequest struct {
	Item   CartItem `json:"item"`
	UserID string   `json:"userId"`
}
