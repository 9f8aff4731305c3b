package model

import (
	"fmt"
	"time"
)

// ApplicationType distinguishes a desktop application from a web application
// identified by URL.
type ApplicationType string

const (
	ApplicationTypeApp ApplicationType = "application"
	ApplicationTypeWeb ApplicationType = "web application"
)

// Application is a blockable/categorisable identity upserted from observed
// events. Exactly one of Name/URL is non-empty, matching its Type.
type Application struct {
	ID               int64
	Type             ApplicationType
	Name             string
	URL              string
	Alias            string
	IsBlocked        bool
	IsIgnoreIdleTime bool
	Color            string
	Criteria         string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// UpsertKey returns the key used to look up an existing row: URL if present,
// else Name.
func (a *Application) UpsertKey() (field, value string) {
	if a.URL != "" {
		return "url", a.URL
	}
	return "name", a.Name
}

// Validate enforces the §3 invariant that exactly one of Name/URL is set.
func (a *Application) Validate() error {
	if a.Name == "" && a.URL == "" {
		return fmt.Errorf("model: application must have a name or url")
	}
	if a.Name != "" && a.URL != "" {
		return fmt.Errorf("model: application must not have both a name and a url")
	}
	return nil
}
