// SPDX-FileCopyrightText: 2025 NREL
// SPDX-License-Identifier: Apache-2.0

package store

import "context"

// DefaultPageSize is used by Iterate when the caller does not need to
// tune it.
const DefaultPageSize = 200

// Iterate accumulates every page of a List-shaped call by advancing
// offset by the number of items actually returned until HasMore is
// false. Implemented once
// here and reused by every manager instead of each one re-deriving the
// same loop.
func Iterate[T any](ctx context.Context, pageSize int, list func(ctx context.Context, offset, limit int) (ListResult[T], error)) ([]T, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	var all []T
	offset := 0
	for {
		page, err := list(ctx, offset, pageSize)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Items...)
		if !page.HasMore || len(page.Items) == 0 {
			break
		}
		offset += len(page.Items)
	}
	return all, nil
}
