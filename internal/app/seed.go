package app

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"github.com/utafrali/catalog-search/internal/domain"
)

// DefaultSeedBatch is the number of rows per multi-row INSERT.
const DefaultSeedBatch = 500

// seedSource is the fixed PCG seed so repeated runs generate the same items.
const seedSource = 42

// BatchInserter writes items in bulk.
type BatchInserter interface {
	InsertBatch(ctx context.Context, items []domain.Item) (int, error)
}

var (
	seedCategories = []string{
		"Lighting", "Furniture", "Kitchen", "Garden", "Office",
		"Electronics", "Outdoor", "Bath", "Storage", "Textiles",
	}
	seedAdjectives = []string{
		"Compact", "Classic", "Modern", "Rustic", "Premium",
		"Foldable", "Wireless", "Heavy Duty", "Minimal", "Vintage",
	}
	seedNouns = map[string][]string{
		"Lighting":    {"Desk Lamp", "Floor Lamp", "Pendant Light", "String Lights"},
		"Furniture":   {"Armchair", "Bookshelf", "Side Table", "Bench"},
		"Kitchen":     {"Kettle", "Chef Knife", "Cutting Board", "Coffee Grinder"},
		"Garden":      {"Hose Reel", "Planter", "Pruning Shears", "Watering Can"},
		"Office":      {"Monitor Stand", "Desk Organizer", "Office Chair", "Whiteboard"},
		"Electronics": {"Headphones", "Power Bank", "Bluetooth Speaker", "USB Hub"},
		"Outdoor":     {"Camping Tent", "Cooler Box", "Hammock", "Lantern"},
		"Bath":        {"Towel Set", "Shower Caddy", "Bath Mat", "Soap Dispenser"},
		"Storage":     {"Storage Box", "Shoe Rack", "Wall Shelf", "Laundry Basket"},
		"Textiles":    {"Throw Blanket", "Cushion Cover", "Curtain Panel", "Rug"},
	}
	seedColors = []string{
		"Black", "White", "Oak", "Walnut", "Grey", "Navy", "Sage", "Terracotta",
	}
	seedDescriptions = []string{
		"A %s built for everyday use with durable materials.",
		"Our best selling %s, now in a refreshed finish.",
		"Lightweight %s that is easy to clean and store.",
		"A %s designed to fit small spaces without compromise.",
		"Sturdy %s backed by a two year warranty.",
	}
)

// NewSeedRand returns the deterministic generator used by GenerateItems.
func NewSeedRand() *rand.Rand {
	return rand.New(rand.NewPCG(seedSource, 0))
}

// GenerateItems builds n catalog items spread evenly across the seed
// categories. The same generator state yields the same items.
func GenerateItems(rng *rand.Rand, n int) []domain.Item {
	items := make([]domain.Item, 0, n)
	for i := 0; i < n; i++ {
		category := seedCategories[i%len(seedCategories)]
		nouns := seedNouns[category]
		noun := nouns[rng.IntN(len(nouns))]
		adjective := seedAdjectives[rng.IntN(len(seedAdjectives))]
		color := seedColors[rng.IntN(len(seedColors))]

		description := fmt.Sprintf(seedDescriptions[rng.IntN(len(seedDescriptions))], noun)
		cat := category

		// 4.99 to 499.99, always ending in 99 cents.
		price := int64(4+rng.IntN(496))*100 + 99

		// Roughly one in ten items is out of stock.
		stock := 0
		if rng.IntN(10) > 0 {
			stock = 1 + rng.IntN(250)
		}

		items = append(items, domain.Item{
			Name:        fmt.Sprintf("%s %s - %s", adjective, noun, color),
			Description: &description,
			Category:    &cat,
			PriceCents:  price,
			Stock:       stock,
		})
	}
	return items
}

// Seed inserts items in batches and returns how many rows were written.
// A failed batch stops the run.
func Seed(ctx context.Context, dst BatchInserter, items []domain.Item, batch int, logger *slog.Logger) (int, error) {
	if batch < 1 {
		batch = DefaultSeedBatch
	}

	logger.Info("seeding catalog items", slog.Int("items", len(items)), slog.Int("batch", batch))

	inserted := 0
	for start := 0; start < len(items); start += batch {
		end := min(start+batch, len(items))
		n, err := dst.InsertBatch(ctx, items[start:end])
		if err != nil {
			return inserted, fmt.Errorf("insert items %d-%d: %w", start, end, err)
		}
		inserted += n

		if end%(batch*2) == 0 || end == len(items) {
			logger.Info("seed progress", slog.Int("inserted", inserted), slog.Int("items", len(items)))
		}
	}
	return inserted, nil
}
