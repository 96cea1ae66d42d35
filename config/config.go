// Package config loads the chaincode settings from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"pharmaledger/model"

	"github.com/hyperledger/fabric-chaincode-go/shim"
	"github.com/joho/godotenv"
)

// Config holds the settings of one chaincode process. Every endorsing peer of the
// channel must run with the same organization mapping, otherwise endorsements
// diverge.
type Config struct {
	// --- Organizations ---

	ManufacturerMSPs []string // PHARMA_MANUFACTURER_MSPS
	HealthMSPs       []string // PHARMA_HEALTH_MSPS
	LogisticsMSPs    []string // PHARMA_LOGISTICS_MSPS
	RegulatorMSPs    []string // PHARMA_REGULATOR_MSPS

	// --- Chaincode server ---

	// Address and ID of the external chaincode service. When either is empty the
	// chaincode is launched by the peer instead.
	ServerAddress string
	ChaincodeID   string

	TLSDisabled      bool
	TLSKeyFile       string
	TLSCertFile      string
	ClientCACertFile string

	// --- Observability ---

	MetricsAddress string // Empty disables the /metrics endpoint
	LogSpec        string
	LogFormat      string
}

// Load reads the configuration from the environment. If PHARMA_ENV_FILE names a
// dotenv file, its values are loaded first without overriding variables that are
// already set.
func Load() (*Config, error) {
	if envFile := os.Getenv("PHARMA_ENV_FILE"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("PHARMA_ENV_FILE: cannot load '%s': %w", envFile, err)
		}
	}

	cfg := &Config{
		ManufacturerMSPs: getEnvList("PHARMA_MANUFACTURER_MSPS", "Org1MSP"),
		HealthMSPs:       getEnvList("PHARMA_HEALTH_MSPS", "Org2MSP"),
		LogisticsMSPs:    getEnvList("PHARMA_LOGISTICS_MSPS", "Org3MSP"),
		RegulatorMSPs:    getEnvList("PHARMA_REGULATOR_MSPS", "Org4MSP"),
		ServerAddress:    strings.TrimSpace(os.Getenv("CHAINCODE_SERVER_ADDRESS")),
		ChaincodeID:      strings.TrimSpace(os.Getenv("CHAINCODE_ID")),
		TLSKeyFile:       os.Getenv("CHAINCODE_TLS_KEY"),
		TLSCertFile:      os.Getenv("CHAINCODE_TLS_CERT"),
		ClientCACertFile: os.Getenv("CHAINCODE_CLIENT_CA_CERT"),
		MetricsAddress:   strings.TrimSpace(os.Getenv("PHARMA_METRICS_ADDRESS")),
		LogSpec:          getEnvDefault("PHARMA_LOG_SPEC", "info"),
		LogFormat:        os.Getenv("PHARMA_LOG_FORMAT"),
	}

	var err error
	cfg.TLSDisabled, err = getEnvBool("CHAINCODE_TLS_DISABLED", true)
	if err != nil {
		return nil, fmt.Errorf("CHAINCODE_TLS_DISABLED: %w", err)
	}

	if len(cfg.ManufacturerMSPs) == 0 {
		return nil, fmt.Errorf("PHARMA_MANUFACTURER_MSPS: at least one MSP is required")
	}
	if len(cfg.HealthMSPs) == 0 {
		return nil, fmt.Errorf("PHARMA_HEALTH_MSPS: at least one MSP is required")
	}
	if len(cfg.LogisticsMSPs) == 0 {
		return nil, fmt.Errorf("PHARMA_LOGISTICS_MSPS: at least one MSP is required")
	}
	if _, err := cfg.Directory(); err != nil {
		return nil, err
	}

	if cfg.ExternalService() && !cfg.TLSDisabled {
		if cfg.TLSKeyFile == "" || cfg.TLSCertFile == "" {
			return nil, fmt.Errorf("CHAINCODE_TLS_KEY and CHAINCODE_TLS_CERT are required unless CHAINCODE_TLS_DISABLED=true")
		}
	}
	return cfg, nil
}

// Directory builds the MSP to organization mapping used for authorization.
func (c *Config) Directory() (*model.Directory, error) {
	dir, err := model.NewDirectory(map[model.Organization][]string{
		model.OrgManufacturer:   c.ManufacturerMSPs,
		model.OrgHealthProvider: c.HealthMSPs,
		model.OrgLogistics:      c.LogisticsMSPs,
		model.OrgRegulator:      c.RegulatorMSPs,
	})
	if err != nil {
		return nil, fmt.Errorf("organization mapping: %w", err)
	}
	return dir, nil
}

// ExternalService reports whether the chaincode runs as a service (chaincode-as-a-service)
// rather than being launched by the peer.
func (c *Config) ExternalService() bool {
	return c.ServerAddress != "" && c.ChaincodeID != ""
}

// TLSProperties reads the key material for the chaincode server.
func (c *Config) TLSProperties() (shim.TLSProperties, error) {
	if c.TLSDisabled {
		return shim.TLSProperties{Disabled: true}, nil
	}
	key, err := os.ReadFile(c.TLSKeyFile)
	if err != nil {
		return shim.TLSProperties{}, fmt.Errorf("CHAINCODE_TLS_KEY: %w", err)
	}
	cert, err := os.ReadFile(c.TLSCertFile)
	if err != nil {
		return shim.TLSProperties{}, fmt.Errorf("CHAINCODE_TLS_CERT: %w", err)
	}
	props := shim.TLSProperties{Key: key, Cert: cert}
	if c.ClientCACertFile != "" {
		props.ClientCACerts, err = os.ReadFile(c.ClientCACertFile)
		if err != nil {
			return shim.TLSProperties{}, fmt.Errorf("CHAINCODE_CLIENT_CA_CERT: %w", err)
		}
	}
	return props, nil
}

func getEnvDefault(key, defaultVal string) string {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvList splits a comma-separated variable, dropping blank items.
func getEnvList(key, defaultVal string) []string {
	out := []string{}
	for _, item := range strings.Split(getEnvDefault(key, defaultVal), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("invalid boolean %q (use true, false, 1 or 0)", val)
	}
	return b, nil
}
