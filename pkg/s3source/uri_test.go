package s3source

import (
	"strings"
	"testing"
)

func TestParseS3URI(t *testing.T) {
	tests := []struct {
		uri        string
		wantBucket string
		wantKey    string
		wantErr    bool
	}{
		{uri: "s3://geo-data/silo/rain", wantBucket: "geo-data", wantKey: "silo/rain"},
		{uri: "s3://geo-data", wantBucket: "geo-data"},
		{uri: "s3://geo-data/", wantBucket: "geo-data"},
		{uri: "https://geo-data/x", wantErr: true},
		{uri: "s3:///x", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			bucket, key, err := ParseS3URI(tt.uri)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseS3URI(%q) expected error", tt.uri)
				}
				return
			}
			if err != nil || bucket != tt.wantBucket || key != tt.wantKey {
				t.Errorf("ParseS3URI(%q) = %q, %q, %v", tt.uri, bucket, key, err)
			}
		})
	}
}

func TestParseBucketIdentifier(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr string
	}{
		{in: "geo-data", want: "geo-data"},
		{in: "arn:aws:s3:::geo-data", want: "geo-data"},
		{in: "arn:aws-cn:s3:::geo-data/prefix", want: "geo-data"},
		{in: "", wantErr: "empty"},
		{in: "s3://geo-data", wantErr: "looks like a URI"},
		{in: "arn:aws:ec2:::thing", wantErr: "service must be 's3'"},
		{in: "arn:aws:s3", wantErr: "6 colon-separated"},
		{in: "arn:aws:s3:::", wantErr: "missing bucket"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseBucketIdentifier(tt.in)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("ParseBucketIdentifier(%q) error = %v, want %q", tt.in, err, tt.wantErr)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("ParseBucketIdentifier(%q) = %q, %v", tt.in, got, err)
			}
		})
	}
}

func TestParseManifest(t *testing.T) {
	m, err := ParseManifest(strings.NewReader(`{"files":[{"key":"b.nc","layer":"x"},{"key":"a.nc","layer":"x"},{"key":"c.nc","layer":"y"}]}`))
	if err != nil {
		t.Fatal(err)
	}
	if got := m.Keys("x"); len(got) != 2 || got[0] != "a.nc" {
		t.Errorf("Keys(x) = %v", got)
	}
	if b, _ := m.BucketName("fallback"); b != "fallback" {
		t.Errorf("BucketName() = %q, want fallback", b)
	}
	for _, bad := range []string{`{"files":[]}`, `{"files":[{"key":"a.nc"}]}`, `not json`} {
		if _, err := ParseManifest(strings.NewReader(bad)); err == nil {
			t.Errorf("ParseManifest(%s) expected error", bad)
		}
	}
}
