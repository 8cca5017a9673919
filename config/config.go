/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package config

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	DEFAULT_PORT = "5001"

	DEFAULT_TOLERANCE             = 1000
	DEFAULT_DEBOUNCE_WINDOW_SEC   = 3
	DEFAULT_SYNC_INTERVAL_SEC     = 300
	DEFAULT_SYNC_BATCH_SIZE       = 50
	DEFAULT_SYNC_MAX_ATTEMPTS     = 5
	DEFAULT_SYNC_BASE_DELAY_SEC   = 60
	DEFAULT_SYNC_RETENTION_DAYS   = 7
	DEFAULT_SYNC_STUCK_AFTER_MIN  = 15
	DEFAULT_POLL_WINDOW_HOURS     = 48
	DEFAULT_PLATFORM_DELAY_MS     = 500
	DEFAULT_MIN_RECEIPT_AMOUNT    = 100
	DEFAULT_RESYNC_LIMIT          = 500
	DEFAULT_ENTITY_CACHE_TTL_SEC  = 60
	DEFAULT_MONITORING_PORT       = "5004"
	DEFAULT_PHONE_REGION          = "AR"
	DEFAULT_WEBHOOK_SIGNATURE_HDR = "X-Linkedstore-Hmac-Sha256"
)

var ConfigStore atomic.Value

type ServerConfig struct {
	SSL       bool   `json:"ssl" envconfig:"PAYREC_SERVER_SSL"`
	Secure    bool   `json:"secure" envconfig:"PAYREC_SERVER_SECURE"`
	SecretKey string `json:"secret_key" envconfig:"PAYREC_SERVER_SECRET_KEY"`
	Domain    string `json:"domain" envconfig:"PAYREC_SERVER_SSL_DOMAIN"`
	Email     string `json:"ssl_email" envconfig:"PAYREC_SERVER_SSL_EMAIL"`
	Port      string `json:"port" envconfig:"PAYREC_SERVER_PORT"`
}

type DataSourceConfig struct {
	Dns string `json:"dns" envconfig:"PAYREC_DATA_SOURCE_DNS"`
}

type RedisConfig struct {
	Dns           string `json:"dns" envconfig:"PAYREC_REDIS_DNS"`
	SkipTLSVerify bool   `json:"skip_tls_verify" envconfig:"PAYREC_REDIS_SKIP_TLS_VERIFY"`
}

// PlatformConfig points at the remote e-commerce store the orders are mirrored from.
type PlatformConfig struct {
	BaseURL         string `json:"base_url" envconfig:"PAYREC_PLATFORM_BASE_URL"`
	StoreID         string `json:"store_id" envconfig:"PAYREC_PLATFORM_STORE_ID"`
	AccessToken     string `json:"access_token" envconfig:"PAYREC_PLATFORM_ACCESS_TOKEN"`
	UserAgent       string `json:"user_agent" envconfig:"PAYREC_PLATFORM_USER_AGENT"`
	WebhookSecret   string `json:"webhook_secret" envconfig:"PAYREC_PLATFORM_WEBHOOK_SECRET"`
	SignatureHeader string `json:"signature_header" envconfig:"PAYREC_PLATFORM_SIGNATURE_HEADER"`
	RequestDelayMs  int    `json:"request_delay_ms" envconfig:"PAYREC_PLATFORM_REQUEST_DELAY_MS"`
	PollWindowHours int    `json:"poll_window_hours" envconfig:"PAYREC_PLATFORM_POLL_WINDOW_HOURS"`
}

type SyncConfig struct {
	IntervalSec      int  `json:"interval_sec" envconfig:"PAYREC_SYNC_INTERVAL_SEC"`
	BatchSize        int  `json:"batch_size" envconfig:"PAYREC_SYNC_BATCH_SIZE"`
	MaxAttempts      int  `json:"max_attempts" envconfig:"PAYREC_SYNC_MAX_ATTEMPTS"`
	BaseDelaySec     int  `json:"base_delay_sec" envconfig:"PAYREC_SYNC_BASE_DELAY_SEC"`
	RetentionDays    int  `json:"retention_days" envconfig:"PAYREC_SYNC_RETENTION_DAYS"`
	StuckAfterMin    int  `json:"stuck_after_min" envconfig:"PAYREC_SYNC_STUCK_AFTER_MIN"`
	ResyncLimit      int  `json:"resync_limit" envconfig:"PAYREC_SYNC_RESYNC_LIMIT"`
	DistributedGuard bool `json:"distributed_guard" envconfig:"PAYREC_SYNC_DISTRIBUTED_GUARD"`
}

type PaymentConfig struct {
	Tolerance float64 `json:"tolerance" envconfig:"PAYREC_PAYMENT_TOLERANCE"`
}

type ReceiptConfig struct {
	DebounceWindowSec int     `json:"debounce_window_sec" envconfig:"PAYREC_RECEIPTS_DEBOUNCE_WINDOW_SEC"`
	MinAmount         float64 `json:"min_amount" envconfig:"PAYREC_RECEIPTS_MIN_AMOUNT"`
	EntityCacheTTLSec int     `json:"entity_cache_ttl_sec" envconfig:"PAYREC_RECEIPTS_ENTITY_CACHE_TTL_SEC"`
}

// StorageConfig selects where receipt images are kept. Provider is one of "s3", "gcs" or empty.
type StorageConfig struct {
	Provider           string `json:"provider" envconfig:"PAYREC_STORAGE_PROVIDER"`
	Bucket             string `json:"bucket" envconfig:"PAYREC_STORAGE_BUCKET"`
	Prefix             string `json:"prefix" envconfig:"PAYREC_STORAGE_PREFIX"`
	S3Endpoint         string `json:"s3_endpoint" envconfig:"PAYREC_STORAGE_S3_ENDPOINT"`
	S3Region           string `json:"s3_region" envconfig:"PAYREC_STORAGE_S3_REGION"`
	AwsAccessKeyId     string `json:"aws_access_key_id" envconfig:"PAYREC_STORAGE_AWS_ACCESS_KEY_ID"`
	AwsSecretAccessKey string `json:"aws_secret_access_key" envconfig:"PAYREC_STORAGE_AWS_SECRET_ACCESS_KEY"`
	GCSCredentialsJSON string `json:"gcs_credentials_json" envconfig:"PAYREC_STORAGE_GCS_CREDENTIALS_JSON"`
}

type MessagingConfig struct {
	Url           string `json:"url" envconfig:"PAYREC_MESSAGING_URL"`
	Token         string `json:"token" envconfig:"PAYREC_MESSAGING_TOKEN"`
	DefaultRegion string `json:"default_region" envconfig:"PAYREC_MESSAGING_DEFAULT_REGION"`
}

type OCRConfig struct {
	Url     string `json:"url" envconfig:"PAYREC_OCR_URL"`
	ApiKey  string `json:"api_key" envconfig:"PAYREC_OCR_API_KEY"`
	Timeout int    `json:"timeout" envconfig:"PAYREC_OCR_TIMEOUT"`
}

type QueueConfig struct {
	SyncQueue      string `json:"sync_queue" envconfig:"PAYREC_QUEUE_SYNC_QUEUE"`
	MessagingQueue string `json:"messaging_queue" envconfig:"PAYREC_QUEUE_MESSAGING_QUEUE"`
	MonitoringPort string `json:"monitoring_port" envconfig:"PAYREC_QUEUE_MONITORING_PORT"`
}

type RateLimitConfig struct {
	RequestsPerSecond  *float64 `json:"requests_per_second" envconfig:"PAYREC_RATE_LIMIT_RPS"`
	Burst              *int     `json:"burst" envconfig:"PAYREC_RATE_LIMIT_BURST"`
	CleanupIntervalSec *int     `json:"cleanup_interval_sec" envconfig:"PAYREC_RATE_LIMIT_CLEANUP_INTERVAL_SEC"`
}

type SlackWebhook struct {
	WebhookUrl string `json:"webhook_url" envconfig:"PAYREC_NOTIFICATION_SLACK_WEBHOOK_URL"`
}

type Notification struct {
	Slack SlackWebhook `json:"slack"`
}

type Configuration struct {
	ProjectName     string           `json:"project_name" envconfig:"PAYREC_PROJECT_NAME"`
	LogFormat       string           `json:"log_format" envconfig:"PAYREC_LOG_FORMAT"`
	EnableTelemetry bool             `json:"enable_telemetry" envconfig:"PAYREC_ENABLE_TELEMETRY"`
	Server          ServerConfig     `json:"server"`
	DataSource      DataSourceConfig `json:"data_source"`
	Redis           RedisConfig      `json:"redis"`
	Platform        PlatformConfig   `json:"platform"`
	Sync            SyncConfig       `json:"sync"`
	Payment         PaymentConfig    `json:"payment"`
	Receipts        ReceiptConfig    `json:"receipts"`
	Storage         StorageConfig    `json:"storage"`
	Messaging       MessagingConfig  `json:"messaging"`
	OCR             OCRConfig        `json:"ocr"`
	Queue           QueueConfig      `json:"queue"`
	Notification    Notification     `json:"notification"`
	RateLimit       RateLimitConfig  `json:"rate_limit"`
}

func loadConfigFromFile(file string) error {
	var cnf Configuration
	_, err := os.Stat(file)
	if err == nil {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		defer f.Close()
		err = json.NewDecoder(f).Decode(&cnf)
		if err != nil {
			return err
		}

	} else if errors.Is(err, os.ErrNotExist) {
		log.Println("config json not passed, will use env variables")
	}

	// a local .env is optional; real environment variables take precedence
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Warning: could not read .env file: %v", err)
	}

	// override config from environment variables
	err = envconfig.Process("payrec", &cnf)
	if err != nil {
		return err
	}

	err = cnf.validateAndAddDefaults()
	if err != nil {
		return err
	}

	ConfigStore.Store(&cnf)
	return err
}

func InitConfig(configFile string) error {
	logger()
	return loadConfigFromFile(configFile)
}

func Fetch() (*Configuration, error) {
	config := ConfigStore.Load()
	c, ok := config.(*Configuration)
	if !ok {
		return nil, errors.New("config not loaded from file. Create a json file called payrec.json with your config ❌")
	}
	return c, nil
}

func (cnf *Configuration) validateAndAddDefaults() error {
	if cnf.ProjectName == "" {
		log.Println("Warning: Project name is empty. Setting a default name.")
		cnf.ProjectName = "Payrec Server"
	}

	if cnf.DataSource.Dns == "" {
		log.Println("Error: Data source DNS is empty. It's a required field.")
		return errors.New("data source DNS is required")
	}

	if cnf.Redis.Dns == "" {
		log.Println("Error: Redis DNS is empty. It's a required field.")
		return errors.New("redis DNS is required")
	}

	// Trim white spaces from fields
	cnf.ProjectName = strings.TrimSpace(cnf.ProjectName)
	cnf.Server.Port = strings.TrimSpace(cnf.Server.Port)
	cnf.DataSource.Dns = strings.TrimSpace(cnf.DataSource.Dns)
	cnf.Redis.Dns = strings.TrimSpace(cnf.Redis.Dns)
	cnf.Platform.BaseURL = strings.TrimRight(strings.TrimSpace(cnf.Platform.BaseURL), "/")
	cnf.Storage.Provider = strings.ToLower(strings.TrimSpace(cnf.Storage.Provider))

	// Set default value for Port if it's empty
	if cnf.Server.Port == "" {
		cnf.Server.Port = DEFAULT_PORT
		log.Printf("Warning: Port not specified in config. Setting default port: %s", DEFAULT_PORT)
	}

	cnf.setSyncDefaults()
	cnf.setReceiptDefaults()

	if cnf.Platform.SignatureHeader == "" {
		cnf.Platform.SignatureHeader = DEFAULT_WEBHOOK_SIGNATURE_HDR
	}
	if cnf.Platform.RequestDelayMs <= 0 {
		cnf.Platform.RequestDelayMs = DEFAULT_PLATFORM_DELAY_MS
	}
	if cnf.Platform.PollWindowHours <= 0 {
		cnf.Platform.PollWindowHours = DEFAULT_POLL_WINDOW_HOURS
	}
	if cnf.Platform.UserAgent == "" {
		cnf.Platform.UserAgent = cnf.ProjectName
	}
	if cnf.Payment.Tolerance <= 0 {
		cnf.Payment.Tolerance = DEFAULT_TOLERANCE
	}
	if cnf.Messaging.DefaultRegion == "" {
		cnf.Messaging.DefaultRegion = DEFAULT_PHONE_REGION
	}
	if cnf.Queue.SyncQueue == "" {
		cnf.Queue.SyncQueue = "sync"
	}
	if cnf.Queue.MessagingQueue == "" {
		cnf.Queue.MessagingQueue = "messaging"
	}
	if cnf.Queue.MonitoringPort == "" {
		cnf.Queue.MonitoringPort = DEFAULT_MONITORING_PORT
	}

	switch cnf.Storage.Provider {
	case "", "s3", "gcs":
	default:
		return errors.New("storage provider must be one of s3, gcs or empty")
	}

	// Rate limiting is disabled by default (when both RPS and Burst are nil)
	if cnf.RateLimit.RequestsPerSecond != nil && cnf.RateLimit.Burst == nil {
		defaultBurst := 2 * int(*cnf.RateLimit.RequestsPerSecond)
		cnf.RateLimit.Burst = &defaultBurst
		log.Printf("Warning: Rate limit burst not specified. Setting default value: %d", defaultBurst)
	}
	if cnf.RateLimit.RequestsPerSecond == nil && cnf.RateLimit.Burst != nil {
		defaultRPS := float64(*cnf.RateLimit.Burst) / 2
		cnf.RateLimit.RequestsPerSecond = &defaultRPS
		log.Printf("Warning: Rate limit RPS not specified. Setting default value: %.2f", defaultRPS)
	}
	if cnf.RateLimit.CleanupIntervalSec == nil {
		defaultCleanup := 10800
		cnf.RateLimit.CleanupIntervalSec = &defaultCleanup
	}

	return nil
}

func (cnf *Configuration) setSyncDefaults() {
	if cnf.Sync.IntervalSec <= 0 {
		cnf.Sync.IntervalSec = DEFAULT_SYNC_INTERVAL_SEC
	}
	if cnf.Sync.BatchSize <= 0 {
		cnf.Sync.BatchSize = DEFAULT_SYNC_BATCH_SIZE
	}
	if cnf.Sync.MaxAttempts <= 0 {
		cnf.Sync.MaxAttempts = DEFAULT_SYNC_MAX_ATTEMPTS
	}
	if cnf.Sync.BaseDelaySec <= 0 {
		cnf.Sync.BaseDelaySec = DEFAULT_SYNC_BASE_DELAY_SEC
	}
	if cnf.Sync.RetentionDays <= 0 {
		cnf.Sync.RetentionDays = DEFAULT_SYNC_RETENTION_DAYS
	}
	if cnf.Sync.StuckAfterMin <= 0 {
		cnf.Sync.StuckAfterMin = DEFAULT_SYNC_STUCK_AFTER_MIN
	}
	if cnf.Sync.ResyncLimit <= 0 {
		cnf.Sync.ResyncLimit = DEFAULT_RESYNC_LIMIT
	}
}

func (cnf *Configuration) setReceiptDefaults() {
	if cnf.Receipts.DebounceWindowSec <= 0 {
		cnf.Receipts.DebounceWindowSec = DEFAULT_DEBOUNCE_WINDOW_SEC
	}
	if cnf.Receipts.MinAmount <= 0 {
		cnf.Receipts.MinAmount = DEFAULT_MIN_RECEIPT_AMOUNT
	}
	if cnf.Receipts.EntityCacheTTLSec <= 0 {
		cnf.Receipts.EntityCacheTTLSec = DEFAULT_ENTITY_CACHE_TTL_SEC
	}
}

// Tolerance is the reconciliation band as a decimal.
func (cnf *Configuration) Tolerance() decimal.Decimal {
	return decimal.NewFromFloat(cnf.Payment.Tolerance)
}

func (cnf *Configuration) SyncBaseDelay() time.Duration {
	return time.Duration(cnf.Sync.BaseDelaySec) * time.Second
}

func (cnf *Configuration) SyncRetention() time.Duration {
	return time.Duration(cnf.Sync.RetentionDays) * 24 * time.Hour
}

func (cnf *Configuration) DebounceWindow() time.Duration {
	return time.Duration(cnf.Receipts.DebounceWindowSec) * time.Second
}

// MockConfig sets a mock configuration for testing purposes.
func MockConfig(mockConfig *Configuration) {
	ConfigStore.Store(mockConfig)
}

func logger() {
	logger := logrus.New()
	if format := os.Getenv("PAYREC_LOG_FORMAT"); format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}
	log.SetOutput(logger.Writer())
}
