package pagination

import (
	"context"
	"fmt"
)

// PageFetcher fetches one page and reports how many items it held.
type PageFetcher interface {
	FetchPage(ctx context.Context, page int) (items int, err error)
}

// PageFetcherFunc adapts a function to PageFetcher.
type PageFetcherFunc func(ctx context.Context, page int) (int, error)

// FetchPage calls f.
func (f PageFetcherFunc) FetchPage(ctx context.Context, page int) (int, error) {
	return f(ctx, page)
}

// PageError records the page on which a walk failed.
type PageError struct {
	Page int
	Err  error
}

func (e *PageError) Error() string {
	return fmt.Sprintf("page %d: %v", e.Page, e.Err)
}

func (e *PageError) Unwrap() error {
	return e.Err
}

// Walk fetches pages starting at 1 until a page reports zero items or an
// error occurs. It returns the number of pages requested, including the
// terminating one. Errors are returned as *PageError.
func Walk(ctx context.Context, fetcher PageFetcher) (int, error) {
	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return page - 1, &PageError{Page: page, Err: err}
		}

		n, err := fetcher.FetchPage(ctx, page)
		if err != nil {
			return page, &PageError{Page: page, Err: err}
		}
		if n == 0 {
			return page, nil
		}
	}
}
