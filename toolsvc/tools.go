package toolsvc

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/relaymesh/a2a-go-sdk/wire"
)

// Shipping cost model: base charge plus per-kilogram and per-kilometre rates.
const (
	shippingBaseCost       = 5.0
	shippingWeightFactor   = 1.0
	shippingDistanceFactor = 0.5
)

// Product is one catalog entry.
type Product struct {
	SKU      string  `json:"sku"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Currency string  `json:"currency"`
	Stock    int     `json:"stock"`
}

// Catalog is the in-memory product store backing the stock tools. Stock
// levels mutate under reservation, so access is mutex-guarded.
type Catalog struct {
	mu       sync.Mutex
	products map[string]*Product
	order    []string
}

// NewCatalog builds a catalog from the given products.
func NewCatalog(products ...Product) *Catalog {
	c := &Catalog{products: make(map[string]*Product, len(products))}
	for _, p := range products {
		cp := p
		c.products[p.SKU] = &cp
		c.order = append(c.order, p.SKU)
	}
	return c
}

// DefaultCatalog returns the demo storefront inventory.
func DefaultCatalog() *Catalog {
	return NewCatalog(
		Product{SKU: "SKU-KB01", Name: "Mechanical Keyboard", Price: 89.99, Currency: "USD", Stock: 24},
		Product{SKU: "SKU-MS02", Name: "Wireless Mouse", Price: 39.50, Currency: "USD", Stock: 58},
		Product{SKU: "SKU-MN03", Name: "27in Monitor", Price: 249.00, Currency: "USD", Stock: 11},
		Product{SKU: "SKU-HS04", Name: "USB Headset", Price: 59.00, Currency: "USD", Stock: 0},
	)
}

// DefaultService returns a Service preloaded with the stock catalog tools.
func DefaultService() *Service {
	svc, err := NewService(CatalogTools(DefaultCatalog())...)
	if err != nil {
		// Tool names are fixed constants; duplicates are a programming error.
		panic(err)
	}
	return svc
}

// CatalogTools binds the find_product, calc_shipping and reserve_stock tools
// to a catalog.
func CatalogTools(c *Catalog) []ToolDefinition {
	return []ToolDefinition{
		{
			Name:        "find_product",
			Description: "Find a product by SKU or exact name match.",
			Handler:     c.findProduct,
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{
						"type":        "string",
						"description": "SKU or product name to search for.",
					},
				},
				"required": []any{"query"},
			},
		},
		{
			Name:        "calc_shipping",
			Description: "Calculate shipping cost based on weight and distance.",
			Handler:     calcShipping,
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"weight": map[string]any{
						"type":        "number",
						"description": "Package weight in kilograms.",
					},
					"distance": map[string]any{
						"type":        "number",
						"description": "Shipping distance in kilometres.",
					},
				},
				"required": []any{"weight", "distance"},
			},
		},
		{
			Name:        "reserve_stock",
			Description: "Reserve a quantity of stock for a provided SKU.",
			Handler:     c.reserveStock,
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"sku": map[string]any{
						"type":        "string",
						"description": "Product SKU that should be reserved.",
					},
					"quantity": map[string]any{
						"type":        "integer",
						"minimum":     1,
						"description": "Number of units to reserve.",
					},
				},
				"required": []any{"sku", "quantity"},
			},
		},
	}
}

// findProduct matches the query against SKUs and names, case-insensitively.
func (c *Catalog) findProduct(args map[string]any) wire.Body {
	query := strings.ToLower(args["query"].(string))

	c.mu.Lock()
	defer c.mu.Unlock()
	results := make([]Product, 0, 1)
	for _, sku := range c.order {
		p := c.products[sku]
		if query == strings.ToLower(p.SKU) || query == strings.ToLower(p.Name) {
			results = append(results, *p)
		}
	}
	return wire.Body{Status: wire.StatusSuccess, Message: "SUCCESS", Data: results}
}

func calcShipping(args map[string]any) wire.Body {
	weight := number(args["weight"])
	distance := number(args["distance"])

	cost := shippingBaseCost + weight*shippingWeightFactor + distance*shippingDistanceFactor
	return wire.Body{
		Status:  wire.StatusSuccess,
		Message: "SUCCESS",
		Data:    math.Round(cost*100) / 100,
	}
}

func (c *Catalog) reserveStock(args map[string]any) wire.Body {
	sku := args["sku"].(string)
	quantity := int(number(args["quantity"]))

	c.mu.Lock()
	defer c.mu.Unlock()

	product, ok := c.products[sku]
	if !ok {
		return wire.Body{
			Status:  wire.StatusProductNotFound,
			Message: fmt.Sprintf("Product '%s' not found.", sku),
			Data:    false,
		}
	}
	if product.Stock < quantity {
		return wire.Body{
			Status:  wire.StatusQuantityExceeded,
			Message: fmt.Sprintf("Requested quantity %d exceeds stock for '%s'.", quantity, sku),
			Data:    false,
		}
	}

	product.Stock -= quantity
	return wire.Body{
		Status:  wire.StatusSuccess,
		Message: "SUCCESS",
		Data: map[string]any{
			"reserved":       true,
			"reservation_id": uuid.NewString(),
			"remaining":      product.Stock,
		},
	}
}

// number widens a schema-validated numeric argument. JSON decoding yields
// float64, but tools invoked directly from Go code may pass integers.
func number(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}

// Stock reports the current stock level for a SKU.
func (c *Catalog) Stock(sku string) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.products[sku]
	if !ok {
		return 0, false
	}
	return p.Stock, true
}
