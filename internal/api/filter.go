package api

import (
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// ValidateFilter checks that filter is a JSON object, accepting MongoDB
// Extended JSON wrappers such as {"$oid": ...} and {"$date": ...}.
// The filter string itself is sent to the server unchanged.
func ValidateFilter(filter string) error {
	if strings.TrimSpace(filter) == "" {
		return nil
	}
	var doc bson.D
	if err := bson.UnmarshalExtJSON([]byte(filter), false, &doc); err != nil {
		return &ValidationError{Field: "filter", Message: "Invalid filter JSON: " + err.Error()}
	}
	return nil
}
