package decktutor

import (
	"context"
	"net/http"
	"slices"
)

// FindCardNames returns the card names of the active game matching query
func (c *Client) FindCardNames(ctx context.Context, query string) ([]string, error) {
	game := c.Game()
	key := string(game) + "\x00" + query
	if c.names != nil {
		if names, ok := c.names.Get(key); ok {
			return slices.Clone(names), nil
		}
	}

	params := queryParams(game)
	params["query"] = query

	var names []string
	if err := c.do(ctx, http.MethodGet, "/search/card/name", params, &names); err != nil {
		return nil, err
	}
	if c.names != nil {
		c.names.Add(key, slices.Clone(names))
	}
	return names, nil
}

// FindCardVersions finds the printings of a card. name is the exact official
// name; set limits the search to one set, or browses the set when name is
// empty. A zero limit or order lets the service pick.
func (c *Client) FindCardVersions(ctx context.Context, name, set string, offset, limit int, order Order) ([]CardVersion, error) {
	params := queryParams(c.Game())
	params["name"] = name
	params["set"] = set
	params["offset"] = offset
	if limit > 0 {
		params["limit"] = limit
	}
	params["order"] = order.String()

	var versions []CardVersion
	if err := c.do(ctx, http.MethodGet, "/search/card/version", params, &versions); err != nil {
		return nil, err
	}
	return versions, nil
}

// Serp runs a search over the listings for sale
func (c *Client) Serp(ctx context.Context, search *Search, offset, limit int, order Order) ([]Listing, error) {
	if search == nil {
		search = &Search{}
	}
	req := &SerpRequest{
		Search: search,
		Offset: offset,
		Limit:  limit,
		Order:  order.String(),
	}

	var listings []Listing
	if err := c.do(ctx, http.MethodPost, "/search/serp", req, &listings); err != nil {
		return nil, err
	}
	return listings, nil
}

func queryParams(game Game) query {
	return query{"game": string(game)}
}
