package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Sheets    SheetsConfig
	Programs  ProgramsConfig
	Audit     AuditConfig
	Assistant AssistantConfig
	Edits     EditConfig
	Exports   ExportsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

// RedisConfig points at the session store. An empty host keeps sessions in process.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
	SessionTTL time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// SheetsConfig holds the service credential used for private and writable tables.
type SheetsConfig struct {
	CredentialsFile   string
	CredentialsJSON   string
	CredentialsSecret string
	GCPProjectID      string
	ExportBaseURL     string
	Timeout           time.Duration
	CivilTimezone     string
}

// ProgramSource describes where a program's tables live.
type ProgramSource struct {
	SheetID       string
	SheetGID      string
	Worksheet     string
	FolderGID     string
	FolderSheet   string
	RootFolderURL string
}

// ProgramsConfig maps each program to its sources plus the shared folder index.
type ProgramsConfig struct {
	PharmD          ProgramSource
	PhD             ProgramSource
	FolderIndexID   string
	FolderURLPrefix string
	UsersSheetID    string
	UsersWorksheet  string
}

// AuditConfig selects the audit sinks. The sheets sink is the record of truth.
type AuditConfig struct {
	Sinks         []string
	SheetID       string
	Worksheet     string
	PubSubTopic   string
	PostgresTable string
}

// AssistantConfig toggles the catalog assistant and its semantic fallback.
type AssistantConfig struct {
	Enabled           bool
	GeminiAPIKey      string
	EmbeddingModel    string
	SemanticIndexPath string
	TopK              int
	ExcerptLength     int
}

// EditConfig drives the edit policy hook. Empty roles means any authenticated user may edit.
type EditConfig struct {
	AllowedRoles []string
}

// ExportsConfig controls asynchronous catalog exports.
type ExportsConfig struct {
	Enabled           bool
	StorageDir        string
	SignedURLSecret   string
	SignedURLTTL      time.Duration
	CleanupInterval   time.Duration
	WorkerConcurrency int
	WorkerRetries     int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 12*time.Hour),
		SessionTTL: parseDuration(v.GetString("SESSION_TTL"), 12*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Sheets = SheetsConfig{
		CredentialsFile:   v.GetString("SHEETS_CREDENTIALS_FILE"),
		CredentialsJSON:   v.GetString("SHEETS_CREDENTIALS_JSON"),
		CredentialsSecret: v.GetString("SHEETS_CREDENTIALS_SECRET"),
		GCPProjectID:      v.GetString("GCP_PROJECT_ID"),
		ExportBaseURL:     v.GetString("SHEETS_EXPORT_BASE_URL"),
		Timeout:           parseDuration(v.GetString("STORE_TIMEOUT"), 15*time.Second),
		CivilTimezone:     v.GetString("CIVIL_TIMEZONE"),
	}

	cfg.Programs = ProgramsConfig{
		PharmD:          programSource(v, "PHARMD"),
		PhD:             programSource(v, "PHD"),
		FolderIndexID:   v.GetString("FOLDER_INDEX_SHEET_ID"),
		FolderURLPrefix: v.GetString("FOLDER_URL_PREFIX"),
		UsersSheetID:    v.GetString("USERS_SHEET_ID"),
		UsersWorksheet:  v.GetString("USERS_WORKSHEET"),
	}

	cfg.Audit = AuditConfig{
		Sinks:         splitAndTrim(v.GetString("AUDIT_SINKS")),
		SheetID:       v.GetString("AUDIT_SHEET_ID"),
		Worksheet:     v.GetString("AUDIT_WORKSHEET"),
		PubSubTopic:   v.GetString("AUDIT_PUBSUB_TOPIC"),
		PostgresTable: v.GetString("AUDIT_PG_TABLE"),
	}

	cfg.Assistant = AssistantConfig{
		Enabled:           v.GetBool("ENABLE_ASSISTANT"),
		GeminiAPIKey:      v.GetString("GEMINI_API_KEY"),
		EmbeddingModel:    v.GetString("EMBEDDING_MODEL"),
		SemanticIndexPath: v.GetString("SEMANTIC_INDEX_PATH"),
		TopK:              v.GetInt("ASSISTANT_TOP_K"),
		ExcerptLength:     v.GetInt("ASSISTANT_EXCERPT_LENGTH"),
	}

	cfg.Edits = EditConfig{AllowedRoles: splitAndTrim(v.GetString("EDIT_ALLOWED_ROLES"))}

	cfg.Exports = ExportsConfig{
		Enabled:           v.GetBool("ENABLE_EXPORTS"),
		StorageDir:        v.GetString("EXPORTS_STORAGE_DIR"),
		SignedURLSecret:   v.GetString("EXPORTS_SIGNED_URL_SECRET"),
		SignedURLTTL:      parseDuration(v.GetString("EXPORTS_SIGNED_URL_TTL"), 24*time.Hour),
		CleanupInterval:   parseDuration(v.GetString("EXPORTS_CLEANUP_INTERVAL"), time.Hour),
		WorkerConcurrency: v.GetInt("EXPORTS_WORKER_CONCURRENCY"),
		WorkerRetries:     v.GetInt("EXPORTS_WORKER_RETRIES"),
	}

	return cfg, nil
}

// HasAuditSink reports whether the named sink is enabled.
func (c AuditConfig) HasAuditSink(name string) bool {
	for _, sink := range c.Sinks {
		if strings.EqualFold(sink, name) {
			return true
		}
	}
	return false
}

func programSource(v *viper.Viper, prefix string) ProgramSource {
	return ProgramSource{
		SheetID:       v.GetString(prefix + "_SHEET_ID"),
		SheetGID:      v.GetString(prefix + "_SHEET_GID"),
		Worksheet:     v.GetString(prefix + "_WORKSHEET"),
		FolderGID:     v.GetString(prefix + "_FOLDER_GID"),
		FolderSheet:   v.GetString(prefix + "_FOLDER_WORKSHEET"),
		RootFolderURL: v.GetString(prefix + "_ROOT_FOLDER_URL"),
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "pidb")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 5)
	v.SetDefault("DB_MAX_IDLE_CONNS", 2)

	v.SetDefault("REDIS_HOST", "")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "12h")
	v.SetDefault("SESSION_TTL", "12h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("SHEETS_CREDENTIALS_FILE", "")
	v.SetDefault("SHEETS_CREDENTIALS_JSON", "")
	v.SetDefault("SHEETS_CREDENTIALS_SECRET", "")
	v.SetDefault("GCP_PROJECT_ID", "")
	v.SetDefault("SHEETS_EXPORT_BASE_URL", "https://docs.google.com/spreadsheets/d")
	v.SetDefault("STORE_TIMEOUT", "15s")
	v.SetDefault("CIVIL_TIMEZONE", "America/Puerto_Rico")

	v.SetDefault("PHARMD_SHEET_ID", "1rsF6qjSOeTiEyLN4hvzPZibMU7krItksChH7jGvTA6M")
	v.SetDefault("PHARMD_SHEET_GID", "0")
	v.SetDefault("PHARMD_WORKSHEET", "Cursos")
	v.SetDefault("PHARMD_FOLDER_GID", "0")
	v.SetDefault("PHARMD_FOLDER_WORKSHEET", "PharmD")
	v.SetDefault("PHARMD_ROOT_FOLDER_URL", "https://drive.google.com/drive/folders/1215Nf6MVzcia-wmhjovvQFRJGVMRHS86")
	v.SetDefault("PHD_SHEET_ID", "1R9WtBIahcEXpzQ2uidfCVzpQdOSQ_WIYlGiExa6xSVo")
	v.SetDefault("PHD_SHEET_GID", "0")
	v.SetDefault("PHD_WORKSHEET", "Cursos")
	v.SetDefault("PHD_FOLDER_GID", "1")
	v.SetDefault("PHD_FOLDER_WORKSHEET", "PhD")
	v.SetDefault("PHD_ROOT_FOLDER_URL", "https://drive.google.com/drive/folders/1ODM9hoPtaqiFccz5ljmKzo2ISD1qSTMo")
	v.SetDefault("FOLDER_INDEX_SHEET_ID", "")
	v.SetDefault("FOLDER_URL_PREFIX", "https://drive.google.com/drive/folders/")
	v.SetDefault("USERS_SHEET_ID", "")
	v.SetDefault("USERS_WORKSHEET", "Usuarios")

	v.SetDefault("AUDIT_SINKS", "sheets")
	v.SetDefault("AUDIT_SHEET_ID", "")
	v.SetDefault("AUDIT_WORKSHEET", "Bitacora")
	v.SetDefault("AUDIT_PUBSUB_TOPIC", "")
	v.SetDefault("AUDIT_PG_TABLE", "audit_events")

	v.SetDefault("ENABLE_ASSISTANT", false)
	v.SetDefault("GEMINI_API_KEY", "")
	v.SetDefault("EMBEDDING_MODEL", "text-embedding-004")
	v.SetDefault("SEMANTIC_INDEX_PATH", "./data/semantic_index.json")
	v.SetDefault("ASSISTANT_TOP_K", 5)
	v.SetDefault("ASSISTANT_EXCERPT_LENGTH", 400)

	v.SetDefault("EDIT_ALLOWED_ROLES", "")

	v.SetDefault("ENABLE_EXPORTS", false)
	v.SetDefault("EXPORTS_STORAGE_DIR", "./exports")
	v.SetDefault("EXPORTS_SIGNED_URL_SECRET", "dev_exports_secret")
	v.SetDefault("EXPORTS_SIGNED_URL_TTL", "24h")
	v.SetDefault("EXPORTS_CLEANUP_INTERVAL", "1h")
	v.SetDefault("EXPORTS_WORKER_CONCURRENCY", 1)
	v.SetDefault("EXPORTS_WORKER_RETRIES", 3)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
