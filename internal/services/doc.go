// Package services contains the application service layer between the HTTP
// transport and the data pipeline. Services own orchestration: fetching
// remote files, running the parse/preprocess pipeline, consulting the cache
// and shaping results for the API.
package services
