// Package pagination walks 1-indexed paged endpoints whose end is signalled
// by an empty page rather than a total-count header.
//
// Example usage:
//
//	pages, err := pagination.Walk(ctx, pagination.PageFetcherFunc(
//		func(ctx context.Context, page int) (int, error) {
//			items, err := fetch(ctx, page)
//			collect(items)
//			return len(items), err
//		}))
//
// The walker:
//   - Requests page 1, 2, 3, ... strictly in sequence
//   - Stops after the first page that reports zero items
//   - Stops on the first error, without retrying
//   - Checks the context between pages
package pagination
