package wildberries

import (
	"fmt"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
)

// Region parameters shared by the card and catalog endpoints.
const commonQuery = "appType=1&curr=rub&dest=-1257786&regions=80,38,83,4,64,33,68,70,30,40,86,75,69,1,31,66,110,48,22,71,114"

// ProductDetails is the per-article slice of the card response the monitor
// tracks. Prices arrive in kopecks and are converted to rubles.
type ProductDetails struct {
	Article        string
	Name           string
	Price          float64
	PriceSale      float64
	DiscountBase   int
	DiscountClient int
}

// CategoryNode is one flattened node of the category tree. Shard and Query
// are the routing fields needed to query the node's subcategories; structural
// nodes lack them.
type CategoryNode struct {
	ID         int64
	Name       string
	SearchName *string
	URL        string
	ParentID   *int64
	Shard      *string
	Query      *string
	ChildCount int
}

// SubcategoryInfo is one subcategory option of a category's filter set.
type SubcategoryInfo struct {
	ID    int64
	Name  string
	Count int
}

// CatalogItem is one item summary of a catalog listing page.
type CatalogItem struct {
	Article   string
	Name      string
	PriceSale float64
}

type cardResponse struct {
	Data *struct {
		Products *[]cardProduct `json:"products"`
	} `json:"data"`
}

type cardProduct struct {
	ID         *int64 `json:"id"`
	Name       string `json:"name"`
	PriceU     *int64 `json:"priceU"`
	SalePriceU *int64 `json:"salePriceU"`
	Extended   *struct {
		BasicSale  int `json:"basicSale"`
		ClientSale int `json:"clientSale"`
	} `json:"extended"`
}

// ProductDetails fetches the card details of one article. The returned time
// is when the fetch started, to be recorded as the entity's fetched_at.
func (c *Client) ProductDetails(article string) (time.Time, ProductDetails, error) {
	fetchStartedAt := time.Now().UTC()
	c.log.Debugw("fetch product details", "article", article)

	url := fmt.Sprintf("%s/cards/detail?%s&spp=32&nm=%s", c.CardBase, commonQuery, article)
	var resp cardResponse
	if err := c.getJSON(url, &resp); err != nil {
		return fetchStartedAt, ProductDetails{}, errors.Wrapf(err, "product details for article %s", article)
	}

	switch {
	case resp.Data == nil:
		return fetchStartedAt, ProductDetails{}, errors.Mark(errors.Newf("no \"data\" in response for article %s", article), ErrSchema)
	case resp.Data.Products == nil:
		return fetchStartedAt, ProductDetails{}, errors.Mark(errors.Newf("no \"data.products\" in response for article %s", article), ErrSchema)
	case len(*resp.Data.Products) == 0:
		return fetchStartedAt, ProductDetails{}, errors.Mark(errors.Newf("no products found for article %s", article), ErrSchema)
	case len(*resp.Data.Products) > 1:
		return fetchStartedAt, ProductDetails{}, errors.Mark(errors.Newf("several products returned for article %s", article), ErrSchema)
	}

	p := (*resp.Data.Products)[0]
	if p.ID == nil || p.PriceU == nil || p.SalePriceU == nil || p.Extended == nil {
		return fetchStartedAt, ProductDetails{}, errors.Mark(errors.Newf("incomplete product record for article %s", article), ErrSchema)
	}
	if got := strconv.FormatInt(*p.ID, 10); got != article {
		return fetchStartedAt, ProductDetails{}, errors.Mark(errors.Newf("got different article: %s != %s", got, article), ErrSchema)
	}

	return fetchStartedAt, ProductDetails{
		Article:        article,
		Name:           p.Name,
		Price:          float64(*p.PriceU) / 100,
		PriceSale:      float64(*p.SalePriceU) / 100,
		DiscountBase:   p.Extended.BasicSale,
		DiscountClient: p.Extended.ClientSale,
	}, nil
}

type menuNode struct {
	ID     int64      `json:"id"`
	Name   string     `json:"name"`
	Seo    string     `json:"seo"`
	URL    string     `json:"url"`
	Shard  string     `json:"shard"`
	Query  string     `json:"query"`
	Childs []menuNode `json:"childs"`
}

// Categories fetches the main menu and flattens it into a list of category
// nodes with parent references.
func (c *Client) Categories() (time.Time, []CategoryNode, error) {
	fetchStartedAt := time.Now().UTC()
	c.log.Debugw("fetch category tree")

	url := c.StaticBase + "/vol0/data/main-menu-ru-ru-v2.json"
	var nodes []menuNode
	if err := c.getJSON(url, &nodes); err != nil {
		return fetchStartedAt, nil, errors.Wrap(err, "category tree")
	}
	if len(nodes) == 0 {
		return fetchStartedAt, nil, errors.Mark(errors.New("empty category tree"), ErrSchema)
	}

	var flat []CategoryNode
	var walk func(n menuNode, parent *int64)
	walk = func(n menuNode, parent *int64) {
		cn := CategoryNode{
			ID:         n.ID,
			Name:       n.Name,
			URL:        n.URL,
			ParentID:   parent,
			ChildCount: len(n.Childs),
		}
		if n.Seo != "" && n.Seo != n.Name {
			seo := n.Seo
			cn.SearchName = &seo
		}
		if n.Shard != "" {
			shard := n.Shard
			cn.Shard = &shard
		}
		if n.Query != "" {
			query := n.Query
			cn.Query = &query
		}
		flat = append(flat, cn)
		id := n.ID
		for _, child := range n.Childs {
			walk(child, &id)
		}
	}
	for _, n := range nodes {
		walk(n, nil)
	}
	return fetchStartedAt, flat, nil
}

type filtersResponse struct {
	Data *struct {
		Filters []struct {
			Key   string `json:"key"`
			Items []struct {
				ID    int64  `json:"id"`
				Name  string `json:"name"`
				Count int    `json:"count"`
			} `json:"items"`
		} `json:"filters"`
	} `json:"data"`
}

// Subcategories fetches the filter set of a category and extracts the
// subject filter options, which are the category's subcategories.
func (c *Client) Subcategories(shard, query string) (time.Time, []SubcategoryInfo, error) {
	fetchStartedAt := time.Now().UTC()
	c.log.Debugw("fetch subcategories", "shard", shard, "query", query)

	url := fmt.Sprintf("%s/catalog/%s/v4/filters?%s&%s", c.CatalogBase, shard, commonQuery, query)
	var resp filtersResponse
	if err := c.getJSON(url, &resp); err != nil {
		return fetchStartedAt, nil, errors.Wrapf(err, "filters of shard %s", shard)
	}
	if resp.Data == nil {
		return fetchStartedAt, nil, errors.Mark(errors.Newf("no \"data\" in filters of shard %s", shard), ErrSchema)
	}

	for _, f := range resp.Data.Filters {
		if f.Key != "xsubject" {
			continue
		}
		out := make([]SubcategoryInfo, 0, len(f.Items))
		for _, it := range f.Items {
			out = append(out, SubcategoryInfo{ID: it.ID, Name: it.Name, Count: it.Count})
		}
		return fetchStartedAt, out, nil
	}
	return fetchStartedAt, nil, errors.Mark(errors.Newf("no \"xsubject\" filter for shard %s", shard), ErrSchema)
}

type catalogResponse struct {
	Data *struct {
		Products []struct {
			ID         int64  `json:"id"`
			Name       string `json:"name"`
			SalePriceU int64  `json:"salePriceU"`
		} `json:"products"`
	} `json:"data"`
}

// CatalogPage fetches one listing page of a subcategory, filtered to sale
// prices at or below priceCeiling (rubles). Pages are 1-based.
func (c *Client) CatalogPage(shard, query string, subcategoryID int64, priceCeiling float64, page int) ([]CatalogItem, error) {
	c.log.Debugw("fetch catalog page", "shard", shard, "subcategory", subcategoryID, "ceiling", priceCeiling, "page", page)

	url := fmt.Sprintf("%s/catalog/%s/catalog?%s&%s&xsubject=%d&priceU=0;%d&page=%d&sort=popular",
		c.CatalogBase, shard, commonQuery, query, subcategoryID, int64(priceCeiling*100), page)
	var resp catalogResponse
	if err := c.getJSON(url, &resp); err != nil {
		return nil, errors.Wrapf(err, "catalog page %d of shard %s", page, shard)
	}
	if resp.Data == nil {
		return nil, errors.Mark(errors.Newf("no \"data\" in catalog page of shard %s", shard), ErrSchema)
	}

	items := make([]CatalogItem, 0, len(resp.Data.Products))
	for _, p := range resp.Data.Products {
		items = append(items, CatalogItem{
			Article:   strconv.FormatInt(p.ID, 10),
			Name:      p.Name,
			PriceSale: float64(p.SalePriceU) / 100,
		})
	}
	return items, nil
}
