package storage

import (
	"fmt"
	"strings"
)

// Provider names the S3-compatible service behind the bucket.
type Provider string

const (
	ProviderR2           Provider = "r2"
	ProviderS3           Provider = "s3"
	ProviderSupabase     Provider = "supabase"
	ProviderS3Compatible Provider = "s3compatible"
)

// S3Config holds settings for any S3-compatible backend (AWS, R2, Supabase storage, MinIO).
type S3Config struct {
	Provider  Provider
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
	Region    string
	PublicURL string // CDN or public bucket prefix used by GetURL
}

// NewStorage builds the blob store. An empty provider is inferred from the endpoint host.
func NewStorage(cfg *S3Config) (ObjectStorage, error) {
	if cfg == nil || cfg.Bucket == "" {
		return nil, fmt.Errorf("storage: bucket is required")
	}
	resolved := *cfg
	if resolved.Provider == "" {
		resolved.Provider = providerFor(resolved.Endpoint)
	}
	if resolved.Region == "" {
		resolved.Region = "us-east-1"
		if resolved.Provider == ProviderR2 {
			resolved.Region = "auto"
		}
	}
	s, err := newS3Storage(&resolved)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func providerFor(endpoint string) Provider {
	host := strings.ToLower(endpoint)
	for suffix, p := range map[string]Provider{
		"r2.cloudflarestorage.com": ProviderR2,
		"supabase.co":              ProviderSupabase,
		"amazonaws.com":            ProviderS3,
	} {
		if strings.Contains(host, suffix) {
			return p
		}
	}
	return ProviderS3Compatible
}

// dashboardManaged reports whether buckets must be created outside the API.
func (p Provider) dashboardManaged() bool {
	return p == ProviderR2 || p == ProviderSupabase
}
