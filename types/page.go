/*
 * Copyright 2026 unistore-io.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package types

// Pagination defaults and the hard ceiling on page size.
const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

// PageRequest describes one page of a filtered, optionally sorted query.
// Zero or negative Page/Limit fall back to the defaults; Limit is capped at
// MaxLimit.
type PageRequest struct {
	Page   int
	Limit  int
	Filter Filter
	Sort   []Sort
}

// GetPage returns the normalized 1-based page number.
func (p PageRequest) GetPage() int {
	if p.Page < 1 {
		return DefaultPage
	}
	return p.Page
}

// GetLimit returns the normalized page size.
func (p PageRequest) GetLimit() int {
	if p.Limit < 1 {
		return DefaultLimit
	}
	if p.Limit > MaxLimit {
		return MaxLimit
	}
	return p.Limit
}

// GetOffset returns the number of records to skip for the requested page.
func (p PageRequest) GetOffset() int {
	return (p.GetPage() - 1) * p.GetLimit()
}

// PageResult holds one page of data along with pagination metadata.
// Pages is always ceil(Total/Limit).
type PageResult struct {
	Data  []Entity `json:"data"`
	Page  int      `json:"page"`
	Limit int      `json:"limit"`
	Total int64    `json:"total"`
	Pages int      `json:"pages"`
}

// NewPageResult constructs a PageResult, computing the page count from the
// total and the limit.
func NewPageResult(data []Entity, page, limit int, total int64) *PageResult {
	if data == nil {
		data = make([]Entity, 0)
	}
	pages := 0
	if limit > 0 {
		pages = int((total + int64(limit) - 1) / int64(limit))
	}
	return &PageResult{
		Data:  data,
		Page:  page,
		Limit: limit,
		Total: total,
		Pages: pages,
	}
}
