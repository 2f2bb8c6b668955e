// Copyright 2025 PackWatch Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package storage decouples the HTTP API's report read path from whichever
// handle plugin persists the reports. The database plugin registers itself
// here at startup; the API looks the store up per request.
package storage

import (
	"sync"

	"github.com/packwatch/packwatch/pkg/models"
)

// ReportStore reads back persisted compliance reports
type ReportStore interface {
	RecentReports(limit int) ([]models.ReportRecord, error)
}

var (
	mu    sync.RWMutex
	store ReportStore
)

// SetReportStore registers the active report store. Later registrations
// replace earlier ones.
func SetReportStore(s ReportStore) {
	mu.Lock()
	defer mu.Unlock()
	store = s
}

// GetReportStore returns the registered store, or nil when no persistence
// plugin is enabled.
func GetReportStore() ReportStore {
	mu.RLock()
	defer mu.RUnlock()
	return store
}
