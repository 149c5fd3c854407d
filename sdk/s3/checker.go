// Package s3 checks that cached Athena result objects still exist.
package s3

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/kent-id/athenaq/cache"
	"github.com/kent-id/athenaq/util"
)

// HeadObjectAPI is the part of *s3.Client used by Checker.
type HeadObjectAPI interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// Checker is a cache.ExistenceChecker for s3:// locations.
type Checker struct {
	api HeadObjectAPI
}

var _ cache.ExistenceChecker = (*Checker)(nil)

// NewChecker wraps api.
func NewChecker(api HeadObjectAPI) *Checker {
	return &Checker{api: api}
}

// NewFromConfig builds the SDK client from awsCfg.
func NewFromConfig(awsCfg aws.Config) *Checker {
	return NewChecker(s3.NewFromConfig(awsCfg))
}

// Exists reports whether the object at location is present.
// A missing object is (false, nil); any other failure is returned as an error.
func (c *Checker) Exists(ctx context.Context, location string) (bool, error) {
	bucket, key, err := ParseURI(location)
	if err != nil {
		return false, err
	}

	_, err = c.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: util.Ref(bucket),
		Key:    util.Ref(key),
	})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, fmt.Errorf("head %s: %w", location, err)
}

func isNotFound(err error) bool {
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	var withStatus interface{ HTTPStatusCode() int }
	if errors.As(err, &withStatus) && withStatus.HTTPStatusCode() == http.StatusNotFound {
		return true
	}
	return false
}

// ParseURI splits "s3://bucket/key" into bucket and key.
func ParseURI(uri string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(uri, "s3://")
	if !ok {
		return "", "", fmt.Errorf("not an s3 uri: %q", uri)
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("s3 uri %q needs both bucket and key", uri)
	}
	return bucket, key, nil
}
