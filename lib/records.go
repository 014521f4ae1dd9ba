package rapidpro

import (
	"time"
)

// https://rapidpro.io/api/v2/

type ObjectRef struct {
	Uuid string `json:"uuid"`
	Name string `json:"name"`
}

type Group struct {
	Uuid   string  `json:"uuid"`
	Name   string  `json:"name"`
	Query  *string `json:"query"`
	Status string  `json:"status"`
	System bool    `json:"system"`
	Count  int     `json:"count"`
}

type Contact struct {
	Uuid       string                 `json:"uuid"`
	Name       *string                `json:"name"`
	Language   *string                `json:"language"`
	Urns       []string               `json:"urns"`
	Groups     []ObjectRef            `json:"groups"`
	Fields     map[string]interface{} `json:"fields"`
	CreatedOn  time.Time              `json:"created_on"`
	ModifiedOn time.Time              `json:"modified_on"`
	LastSeenOn *time.Time             `json:"last_seen_on"`
}

type Flow struct {
	Uuid       string      `json:"uuid"`
	Name       string      `json:"name"`
	Type       string      `json:"type"`
	Archived   bool        `json:"archived"`
	Labels     []ObjectRef `json:"labels"`
	CreatedOn  *time.Time  `json:"created_on"`
	ModifiedOn *time.Time  `json:"modified_on"`
}

type RunContact struct {
	Uuid string  `json:"uuid"`
	Urn  *string `json:"urn"`
	Name *string `json:"name"`
}

type RunValue struct {
	Value    interface{} `json:"value"`
	Category *string     `json:"category"`
	Node     string      `json:"node"`
	Time     time.Time   `json:"time"`
	Name     string      `json:"name"`
	Input    *string     `json:"input"`
}

type Run struct {
	Id         int64               `json:"id"`
	Uuid       string              `json:"uuid"`
	Flow       ObjectRef           `json:"flow"`
	Contact    RunContact          `json:"contact"`
	Responded  bool                `json:"responded"`
	Values     map[string]RunValue `json:"values"`
	CreatedOn  time.Time           `json:"created_on"`
	ModifiedOn time.Time           `json:"modified_on"`
	ExitedOn   *time.Time          `json:"exited_on"`
	ExitType   *string             `json:"exit_type"`
}
