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

package relational

import (
	"context"
	"time"

	"github.com/fatih/color"
	"github.com/uptrace/bun"

	"github.com/unistore-io/unistore/repository"
)

// slowQueryHook logs statements whose round trip exceeds the configured
// threshold. Failed statements are reported through their own error path.
type slowQueryHook struct {
	slowTime time.Duration
	logger   repository.Logger
}

var _ bun.QueryHook = (*slowQueryHook)(nil)

func (h *slowQueryHook) BeforeQuery(ctx context.Context, event *bun.QueryEvent) context.Context {
	return ctx
}

func (h *slowQueryHook) AfterQuery(ctx context.Context, event *bun.QueryEvent) {
	if event.Err != nil || h.logger == nil {
		return
	}
	duration := time.Since(event.StartTime)
	if duration > h.slowTime {
		h.logger.Warn(color.YellowString("slow query detected"),
			"duration", duration,
			"threshold", h.slowTime,
			"query", event.Query,
		)
	}
}
