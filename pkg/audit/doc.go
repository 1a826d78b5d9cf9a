// Package audit persists the gateway's request and heal outcomes to a
// local SQLite trail.
//
// Every routed request and every heal cycle verdict lands as one row;
// the trail answers "what happened to provider X last night" without
// scraping logs. Retention is enforced by a cron-scheduled pruner.
package audit
