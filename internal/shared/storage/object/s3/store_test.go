package s3

import (
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

func TestApplyPrefix(t *testing.T) {
	tests := []struct {
		prefix, key, want string
	}{
		{"", "reports/t1.pdf", "reports/t1.pdf"},
		{"documind", "reports/t1.pdf", "documind/reports/t1.pdf"},
		{"/documind/", "/owner/doc.pdf", "documind/owner/doc.pdf"},
		{"documind/prod", "", "documind/prod"},
	}
	for _, tt := range tests {
		if got := applyPrefix(tt.prefix, tt.key); got != tt.want {
			t.Fatalf("applyPrefix(%q, %q) = %q, want %q", tt.prefix, tt.key, got, tt.want)
		}
	}
}

func TestPutInputEncryption(t *testing.T) {
	kms := (&Store{bucket: "docs", kmsKeyID: "key-1"}).putInput("reports/t1.pdf", "application/pdf", strings.NewReader("%PDF"))
	if kms.ServerSideEncryption != s3types.ServerSideEncryptionAwsKms || aws.ToString(kms.SSEKMSKeyId) != "key-1" {
		t.Fatalf("expected kms encryption, got %s %q", kms.ServerSideEncryption, aws.ToString(kms.SSEKMSKeyId))
	}

	plain := (&Store{bucket: "docs"}).putInput("reports/t1.pdf", "application/pdf", strings.NewReader("%PDF"))
	if plain.ServerSideEncryption != s3types.ServerSideEncryptionAes256 || plain.SSEKMSKeyId != nil {
		t.Fatalf("expected AES256 without key, got %s", plain.ServerSideEncryption)
	}
	if aws.ToString(plain.Bucket) != "docs" || aws.ToString(plain.ContentType) != "application/pdf" {
		t.Fatalf("unexpected input: bucket=%q type=%q", aws.ToString(plain.Bucket), aws.ToString(plain.ContentType))
	}
}

func TestIsNotFound(t *testing.T) {
	if !isNotFound(&s3types.NoSuchKey{}) {
		t.Fatalf("expected NoSuchKey to be not found")
	}
	if isNotFound(errors.New("throttled")) {
		t.Fatalf("expected plain error to be found")
	}
}

func TestNewRequiresBucket(t *testing.T) {
	if _, err := New(t.Context(), "us-east-1", "", "", ""); err == nil {
		t.Fatalf("expected error without bucket")
	}
}
