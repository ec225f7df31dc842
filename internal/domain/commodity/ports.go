package commodity

import "context"

// Repository provides read access to the commodity catalogue
type Repository interface {
	FindByID(ctx context.Context, commodityID string) (*Commodity, error)
	Save(ctx context.Context, c *Commodity) error
}
