package gcp

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
)

// NewFirestoreClient creates and returns a new Firestore client for the given project ID.
func NewFirestoreClient(ctx context.Context, projectID string) (*firestore.Client, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID must be provided to create a firestore client")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	return client, nil
}

// FindOne returns the first document in collection whose fields equal the
// given values, or nil when none does. Equality-only filters are served by
// Firestore's single-field indexes, so no composite index is needed.
func FindOne(ctx context.Context, col *firestore.CollectionRef, equals map[string]interface{}) (*firestore.DocumentSnapshot, error) {
	q := col.Query
	for path, v := range equals {
		q = q.Where(path, "==", v)
	}
	docs, err := q.Limit(1).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", col.ID, err)
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return docs[0], nil
}
