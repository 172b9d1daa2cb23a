package users

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/yashrajoria/E-Commerce-loadgen/catalog"
	"github.com/yashrajoria/E-Commerce-loadgen/flags"
	"github.com/yashrajoria/E-Commerce-loadgen/models"
)

// Behavior names, also used as task names in the statistics.
const (
	BehaviorIndex              = "index"
	BehaviorBrowseProduct      = "browse_product"
	BehaviorGetRecommendations = "get_recommendations"
	BehaviorGetAds             = "get_ads"
	BehaviorViewCart           = "view_cart"
	BehaviorAddToCart          = "add_to_cart"
	BehaviorCheckout           = "checkout"
	BehaviorCheckoutMulti      = "checkout_multi"
	BehaviorFloodHome          = "flood_home"
)

// Behavior is one entry of the shopper's task menu.
type Behavior struct {
	Name   string
	Weight int
	Run    func(ctx context.Context, u *User) error
}

// DefaultBehaviors returns the shopper menu with its relative weights.
func DefaultBehaviors() []Behavior {
	return []Behavior{
		{Name: BehaviorIndex, Weight: 1, Run: index},
		{Name: BehaviorBrowseProduct, Weight: 10, Run: browseProduct},
		{Name: BehaviorGetRecommendations, Weight: 3, Run: getRecommendations},
		{Name: BehaviorGetAds, Weight: 3, Run: getAds},
		{Name: BehaviorViewCart, Weight: 3, Run: viewCart},
		{Name: BehaviorAddToCart, Weight: 2, Run: addToCart},
		{Name: BehaviorCheckout, Weight: 1, Run: checkout},
		{Name: BehaviorCheckoutMulti, Weight: 1, Run: checkoutMulti},
		{Name: BehaviorFloodHome, Weight: 5, Run: floodHome},
	}
}

// WithWeights returns a copy of behaviors with the named weights replaced.
func WithWeights(behaviors []Behavior, overrides map[string]int) ([]Behavior, error) {
	out := make([]Behavior, len(behaviors))
	copy(out, behaviors)

	known := make(map[string]int, len(out))
	for i, b := range out {
		known[b.Name] = i
	}
	for name, w := range overrides {
		i, ok := known[name]
		if !ok {
			return nil, fmt.Errorf("users: unknown behavior %q", name)
		}
		out[i].Weight = w
	}
	return out, nil
}

func index(ctx context.Context, u *User) error {
	u.log.Info("User accessing index page")
	return u.store.Index(ctx)
}

func browseProduct(ctx context.Context, u *User) error {
	product := u.catalog.RandomProduct(u.rng)
	u.log.Info("User browsing product", zap.String("product", product))
	return u.store.Product(ctx, product)
}

func getRecommendations(ctx context.Context, u *User) error {
	product := u.catalog.RandomProduct(u.rng)
	u.log.Info("User getting recommendations for product", zap.String("product", product))
	return u.store.Recommendations(ctx, product)
}

func getAds(ctx context.Context, u *User) error {
	category := u.catalog.RandomCategory(u.rng)
	logged := category
	if category == catalog.NoCategory {
		logged = "none"
	}
	u.log.Info("User getting ads for category", zap.String("category", logged))
	return u.store.Ads(ctx, category)
}

func viewCart(ctx context.Context, u *User) error {
	u.log.Info("User viewing cart")
	return u.store.Cart(ctx)
}

func addToCart(ctx context.Context, u *User) error {
	return u.addToCart(ctx, u.newSessionID())
}

// addToCart looks the product up, then adds it to the cart keyed by sessionID.
// The cart call is made even if the lookup failed.
func (u *User) addToCart(ctx context.Context, sessionID string) error {
	product := u.catalog.RandomProduct(u.rng)
	quantity := catalog.RandomQuantity(u.rng)
	u.log.Info("User adding product to cart",
		zap.String("session_id", sessionID),
		zap.String("product", product),
		zap.Int("quantity", quantity),
	)

	lookupErr := u.store.Product(ctx, product)
	addErr := u.store.AddToCart(ctx, models.AddToCartRequest{
		Item:   models.CartItem{ProductID: product, Quantity: quantity},
		UserID: sessionID,
	})
	return errors.Join(lookupErr, addErr)
}

func checkout(ctx context.Context, u *User) error {
	sessionID := u.newSessionID()
	addErr := u.addToCart(ctx, sessionID)

	person := u.catalog.RandomPerson(u.rng).ForSession(sessionID)
	checkoutErr := u.store.Checkout(ctx, person)
	u.log.Info("Checkout completed", zap.String("session_id", sessionID))
	return errors.Join(addErr, checkoutErr)
}

func checkoutMulti(ctx context.Context, u *User) error {
	sessionID := u.newSessionID()
	itemCount := 2 + u.rng.IntN(3)

	var errs []error
	for i := 0; i < itemCount; i++ {
		errs = append(errs, u.addToCart(ctx, sessionID))
	}

	person := u.catalog.RandomPerson(u.rng).ForSession(sessionID)
	errs = append(errs, u.store.Checkout(ctx, person))
	u.log.Info("Multi-item checkout completed",
		zap.String("session_id", sessionID),
		zap.Int("items", itemCount),
	)
	return errors.Join(errs...)
}

// floodHome reads the flood count once and fetches the index that many
// times in sequence.
func floodHome(ctx context.Context, u *User) error {
	count := u.flags.Int(ctx, flags.FloodHomepage)
	if count <= 0 {
		return nil
	}
	u.log.Info("User flooding homepage", zap.Int("count", count))

	var first error
	failed := 0
	for i := 0; i < count; i++ {
		if ctx.Err() != nil {
			break
		}
		if err := u.store.Index(ctx); err != nil {
			failed++
			if first == nil {
				first = err
			}
		}
	}
	if first != nil {
		return fmt.Errorf("flood: %d of %d requests failed: %w", failed, count, first)
	}
	return nil
}
