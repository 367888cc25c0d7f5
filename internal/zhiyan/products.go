package zhiyan

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// Product is the inquiry-product context attached to a conversation.
// Immutable once fetched; safe to share read-only across conversations.
type Product struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

// ProductQuery selects a page of the shop catalogue.
type ProductQuery struct {
	ShopID   string
	Page     int
	PageSize int
	Search   string
}

// ProductItem is one catalogue row as the backend returns it.
type ProductItem struct {
	ProductID    any    `json:"product_id"`
	ProductTitle string `json:"product_title"`
}

// ID renders the backend's product_id (string or number) as a string.
func (p ProductItem) ID() string {
	switch v := p.ProductID.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}

// ProductPage is one page of catalogue results.
type ProductPage struct {
	Total int           `json:"total"`
	Items []ProductItem `json:"data"`
}

type productsResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Result  ProductPage `json:"result"`
}

// Products fetches one page of the shop catalogue from /api/products/.
func (c *Client) Products(ctx context.Context, token string, q ProductQuery) (*ProductPage, error) {
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.PageSize <= 0 {
		q.PageSize = 10
	}
	query := url.Values{
		"page":     {strconv.Itoa(q.Page)},
		"pageSize": {strconv.Itoa(q.PageSize)},
		"search":   {q.Search},
		"shop_id":  {q.ShopID},
	}

	var resp productsResponse
	if err := c.getJSON(ctx, "/api/products/", query, token, &resp); err != nil {
		return nil, err
	}
	if resp.Code != 200 {
		return nil, fmt.Errorf("product list rejected (code %d): %s", resp.Code, resp.Message)
	}
	return &resp.Result, nil
}

// ProductByIndex fetches the first catalogue page and returns the product at
// the given index as inquiry-product context.
func (c *Client) ProductByIndex(ctx context.Context, token, shopID string, index int) (*Product, error) {
	page, err := c.Products(ctx, token, ProductQuery{ShopID: shopID})
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(page.Items) {
		return nil, fmt.Errorf("product index %d out of range (page has %d items)", index, len(page.Items))
	}

	item := page.Items[index]
	return &Product{
		ID:    item.ID(),
		Title: item.ProductTitle,
		URL:   "https://item.taobao.com/item.htm?id=" + item.ID(),
	}, nil
}
