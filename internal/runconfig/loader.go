package runconfig

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wonny/pitlab/internal/backtest"
)

// Load reads a backtest run configuration from YAML.
// SSOT 핵심: KnownFields(true)로 오타/미사용 필드 즉시 실패
func Load(path string) (*backtest.RunConfig, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read config: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, data, err
	}
	return cfg, data, nil
}

// Parse decodes and validates one YAML document.
func Parse(data []byte) (*backtest.RunConfig, error) {
	var cfg backtest.RunConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true) // 알 수 없는 필드 발견 시 에러 반환
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Hash generates a SHA256 hash of the configuration (canonical JSON).
// 주의: map 대신 struct 사용으로 해시 재현성 보장
func Hash(cfg *backtest.RunConfig) (string, error) {
	jsonBytes, err := json.Marshal(cfg)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(jsonBytes)
	return hex.EncodeToString(sum[:]), nil
}

// DecisionSnapshot pins everything needed to reproduce one run: the exact
// configuration bytes, their hash, and the data version the run saw.
type DecisionSnapshot struct {
	ConfigHash    string    `json:"config_hash"`
	ConfigYAML    string    `json:"config_yaml"`
	RunID         string    `json:"run_id"`
	IngestVersion int64     `json:"ingest_version"` // 실행 시점의 max ingest_seq
	CreatedAt     time.Time `json:"created_at"`
}

// NewDecisionSnapshot creates an audit snapshot for one run.
func NewDecisionSnapshot(cfg *backtest.RunConfig, yamlData []byte, ingestVersion int64) (*DecisionSnapshot, error) {
	hash, err := Hash(cfg)
	if err != nil {
		return nil, err
	}
	return &DecisionSnapshot{
		ConfigHash:    hash,
		ConfigYAML:    string(yamlData),
		RunID:         cfg.RunID,
		IngestVersion: ingestVersion,
		CreatedAt:     time.Now(),
	}, nil
}
