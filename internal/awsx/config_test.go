package awsx

import (
	"context"
	"testing"
)

func TestLoadAWSConfig_DefaultRegion(t *testing.T) {
	t.Setenv("AWS_REGION", "")
	cfg, err := LoadAWSConfig(context.Background())
	if err != nil {
		t.Fatalf("LoadAWSConfig: %v", err)
	}
	if cfg.Region != "ap-northeast-2" {
		t.Fatalf("region = %q, want ap-northeast-2 fallback", cfg.Region)
	}
}

func TestLoadAWSConfig_EnvRegion(t *testing.T) {
	t.Setenv("AWS_REGION", "us-west-2")
	cfg, err := LoadAWSConfig(context.Background())
	if err != nil {
		t.Fatalf("LoadAWSConfig: %v", err)
	}
	if cfg.Region != "us-west-2" {
		t.Fatalf("region = %q, want us-west-2", cfg.Region)
	}
}
