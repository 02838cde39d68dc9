package config

import (
	"os"
	"path/filepath"
	"slices"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/bankscan/internal/model"
)

// ErrUnknownProvider is returned when a provider ID is not recognized.
var ErrUnknownProvider = eris.New("config: unknown provider")

// ErrInvalidSettings marks settings values that fail validation.
var ErrInvalidSettings = eris.New("config: invalid settings")

// Settings is the persisted OCR configuration: provider credentials,
// preprocessing parameters and extraction rules.
type Settings struct {
	Providers  ProvidersConfig  `yaml:"providers" json:"providers"`
	Preprocess PreprocessConfig `yaml:"preprocess" json:"preprocess"`
	Rules      RuleSet          `yaml:"extraction_rules" json:"extraction_rules"`
}

// PreprocessConfig controls image normalization.
type PreprocessConfig struct {
	MaxSize int    `yaml:"max_size" json:"max_size"`
	Quality int    `yaml:"quality" json:"quality"`
	Format  string `yaml:"format" json:"format"`
}

// RuleSet holds ordered regex patterns per field. Earlier patterns win.
type RuleSet struct {
	BankName      []string `yaml:"bank_name_patterns" json:"bank_name_patterns"`
	CompanyName   []string `yaml:"company_patterns" json:"company_patterns"`
	AccountNumber []string `yaml:"account_patterns" json:"account_patterns"`
	Balance       []string `yaml:"balance_patterns" json:"balance_patterns"`
}

// ProviderCommon holds the fields every provider shares.
type ProviderCommon struct {
	Enabled             bool    `yaml:"enabled" json:"enabled"`
	ConfidenceThreshold float64 `yaml:"confidence_threshold" json:"confidence_threshold"`
	RateLimit           float64 `yaml:"rate_limit" json:"rate_limit"` // requests/sec, 0 = unlimited
}

// Common exposes the shared fields of an embedding provider config.
func (c *ProviderCommon) Common() *ProviderCommon { return c }

// ProviderSettings is implemented by every per-provider config struct.
type ProviderSettings interface {
	Common() *ProviderCommon
	Configured() bool
}

// BaiduConfig configures Baidu general OCR.
type BaiduConfig struct {
	ProviderCommon `yaml:",inline"`
	APIKey         string `yaml:"api_key" json:"api_key"`
	SecretKey      string `yaml:"secret_key" json:"secret_key"`
	URL            string `yaml:"url" json:"url"`
	TokenURL       string `yaml:"token_url" json:"token_url"`
}

// Configured reports whether credentials are present.
func (c *BaiduConfig) Configured() bool { return c.APIKey != "" && c.SecretKey != "" }

// TencentConfig configures Tencent Cloud GeneralBasicOCR.
type TencentConfig struct {
	ProviderCommon `yaml:",inline"`
	SecretID       string `yaml:"secret_id" json:"secret_id"`
	SecretKey      string `yaml:"secret_key" json:"secret_key"`
	Region         string `yaml:"region" json:"region"`
	Endpoint       string `yaml:"endpoint" json:"endpoint"`
}

// Configured reports whether credentials are present.
func (c *TencentConfig) Configured() bool { return c.SecretID != "" && c.SecretKey != "" }

// AliyunConfig configures Alibaba Cloud RecognizeGeneral.
type AliyunConfig struct {
	ProviderCommon  `yaml:",inline"`
	AccessKeyID     string `yaml:"access_key_id" json:"access_key_id"`
	AccessKeySecret string `yaml:"access_key_secret" json:"access_key_secret"`
	Endpoint        string `yaml:"endpoint" json:"endpoint"`
}

// Configured reports whether credentials are present.
func (c *AliyunConfig) Configured() bool { return c.AccessKeyID != "" && c.AccessKeySecret != "" }

// AzureConfig configures Azure Computer Vision OCR.
type AzureConfig struct {
	ProviderCommon  `yaml:",inline"`
	SubscriptionKey string `yaml:"subscription_key" json:"subscription_key"`
	Endpoint        string `yaml:"endpoint" json:"endpoint"`
	Language        string `yaml:"language" json:"language"`
}

// Configured reports whether credentials are present.
func (c *AzureConfig) Configured() bool { return c.SubscriptionKey != "" && c.Endpoint != "" }

// GoogleConfig configures Google Cloud Vision.
type GoogleConfig struct {
	ProviderCommon `yaml:",inline"`
	APIKey         string `yaml:"api_key" json:"api_key"`
	URL            string `yaml:"url" json:"url"`
}

// Configured reports whether credentials are present.
func (c *GoogleConfig) Configured() bool { return c.APIKey != "" }

// MistralConfig configures the Mistral OCR endpoint.
type MistralConfig struct {
	ProviderCommon `yaml:",inline"`
	APIKey         string `yaml:"api_key" json:"api_key"`
	Model          string `yaml:"model" json:"model"`
	Endpoint       string `yaml:"endpoint" json:"endpoint"`
}

// Configured reports whether credentials are present.
func (c *MistralConfig) Configured() bool { return c.APIKey != "" }

// AnthropicConfig configures Claude vision transcription.
type AnthropicConfig struct {
	ProviderCommon `yaml:",inline"`
	APIKey         string `yaml:"api_key" json:"api_key"`
	Model          string `yaml:"model" json:"model"`
	BaseURL        string `yaml:"base_url" json:"base_url"`
}

// Configured reports whether credentials are present.
func (c *AnthropicConfig) Configured() bool { return c.APIKey != "" }

// TesseractConfig configures the local Tesseract engine.
type TesseractConfig struct {
	ProviderCommon `yaml:",inline"`
	Languages      []string `yaml:"languages" json:"languages"`
}

// Configured reports whether the engine has languages to load.
func (c *TesseractConfig) Configured() bool { return len(c.Languages) > 0 }

// ProvidersConfig holds one config block per provider.
type ProvidersConfig struct {
	Aliyun    AliyunConfig    `yaml:"aliyun" json:"aliyun"`
	Anthropic AnthropicConfig `yaml:"anthropic" json:"anthropic"`
	Azure     AzureConfig     `yaml:"azure" json:"azure"`
	Baidu     BaiduConfig     `yaml:"baidu" json:"baidu"`
	Google    GoogleConfig    `yaml:"google" json:"google"`
	Mistral   MistralConfig   `yaml:"mistral" json:"mistral"`
	Tencent   TencentConfig   `yaml:"tencent" json:"tencent"`
	Tesseract TesseractConfig `yaml:"tesseract" json:"tesseract"`
}

// Get returns the mutable config block for a provider.
func (p *ProvidersConfig) Get(id model.ProviderID) (ProviderSettings, bool) {
	switch id {
	case model.ProviderAliyun:
		return &p.Aliyun, true
	case model.ProviderAnthropic:
		return &p.Anthropic, true
	case model.ProviderAzure:
		return &p.Azure, true
	case model.ProviderBaidu:
		return &p.Baidu, true
	case model.ProviderGoogle:
		return &p.Google, true
	case model.ProviderMistral:
		return &p.Mistral, true
	case model.ProviderTencent:
		return &p.Tencent, true
	case model.ProviderTesseract:
		return &p.Tesseract, true
	}
	return nil, false
}

// DefaultRules returns the built-in extraction patterns.
func DefaultRules() RuleSet {
	return RuleSet{
		BankName: []string{
			`(中国(?:农业|工商|建设|邮政储蓄)?银行|交通银行|招商银行|上海浦东发展银行|浦发银行|中信银行|兴业银行|广发银行|民生银行|光大银行|华夏银行|平安银行)`,
			`(农[业行]|工[商行]|建[设行]|中[国行]|交[通行]|招[商行]|浦发|中信|兴业|广发|民生|光大|华夏|平安)`,
		},
		CompanyName: []string{
			`([^，,。.:：\s]{2,30}(?:有限公司|股份有限公司|科技有限公司|贸易有限公司|新能源有限公司))`,
			`户名[:：]?\s*([^，,。.\s]{2,30}(?:有限公司|股份有限公司))`,
			`账户名称[:：]?\s*([^，,。.\s]{2,30}(?:有限公司|股份有限公司))`,
		},
		AccountNumber: []string{
			`\d{10,25}`,
			`\d{4}[\s-]*\d{4}[\s-]*\d{4}[\s-]*\d{4,}`,
			`账号[:：]?\s*(\d{10,25})`,
			`卡号[:：]?\s*(\d{10,25})`,
		},
		Balance: []string{
			`可用余额[:：]?\s*[¥￥]?([\d,]+\.?\d*)`,
			`账户余额[:：]?\s*[¥￥]?([\d,]+\.?\d*)`,
			`余额[:：]?\s*[¥￥]?([\d,]+\.?\d*)`,
			`当前余额[:：]?\s*[¥￥]?([\d,]+\.?\d*)`,
		},
	}
}

// DefaultSettings returns settings with every provider disabled.
func DefaultSettings() *Settings {
	common := ProviderCommon{ConfidenceThreshold: 0.8}
	return &Settings{
		Providers: ProvidersConfig{
			Aliyun: AliyunConfig{
				ProviderCommon: common,
				Endpoint:       "https://ocr-api.cn-hangzhou.aliyuncs.com",
			},
			Anthropic: AnthropicConfig{
				ProviderCommon: common,
				Model:          "claude-sonnet-4-5-20250929",
			},
			Azure: AzureConfig{
				ProviderCommon: common,
				Language:       "zh-Hans",
			},
			Baidu: BaiduConfig{
				ProviderCommon: common,
				URL:            "https://aip.baidubce.com/rest/2.0/ocr/v1/general_basic",
				TokenURL:       "https://aip.baidubce.com/oauth/2.0/token",
			},
			Google: GoogleConfig{
				ProviderCommon: common,
				URL:            "https://vision.googleapis.com/v1/images:annotate",
			},
			Mistral: MistralConfig{
				ProviderCommon: common,
				Model:          "mistral-ocr-latest",
				Endpoint:       "https://api.mistral.ai/v1/ocr",
			},
			Tencent: TencentConfig{
				ProviderCommon: common,
				Region:         "ap-beijing",
				Endpoint:       "https://ocr.tencentcloudapi.com",
			},
			Tesseract: TesseractConfig{
				ProviderCommon: common,
				Languages:      []string{"chi_sim", "eng"},
			},
		},
		Preprocess: PreprocessConfig{
			MaxSize: 4096,
			Quality: 85,
			Format:  "JPEG",
		},
		Rules: DefaultRules(),
	}
}

// Clone returns a deep copy.
func (s *Settings) Clone() *Settings {
	c := *s
	c.Providers.Tesseract.Languages = slices.Clone(s.Providers.Tesseract.Languages)
	c.Rules = RuleSet{
		BankName:      slices.Clone(s.Rules.BankName),
		CompanyName:   slices.Clone(s.Rules.CompanyName),
		AccountNumber: slices.Clone(s.Rules.AccountNumber),
		Balance:       slices.Clone(s.Rules.Balance),
	}
	return &c
}

// Validate checks value ranges.
func (s *Settings) Validate() error {
	for _, id := range model.ProviderIDs() {
		p, _ := s.Providers.Get(id)
		c := p.Common()
		if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
			return eris.Wrapf(ErrInvalidSettings, "config: %s confidence_threshold %.2f outside [0,1]", id, c.ConfidenceThreshold)
		}
		if c.RateLimit < 0 {
			return eris.Wrapf(ErrInvalidSettings, "config: %s rate_limit must not be negative", id)
		}
	}
	if s.Preprocess.MaxSize <= 0 {
		return eris.Wrap(ErrInvalidSettings, "config: preprocess max_size must be positive")
	}
	if s.Preprocess.Quality < 1 || s.Preprocess.Quality > 100 {
		return eris.Wrapf(ErrInvalidSettings, "config: preprocess quality %d outside [1,100]", s.Preprocess.Quality)
	}
	return nil
}

// LoadSettings reads the settings file at path, overlaying it onto the
// defaults. A missing file is created with defaults. A file that cannot be
// parsed yields the defaults along with the parse error.
func LoadSettings(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		s := DefaultSettings()
		if err := SaveSettings(path, s); err != nil {
			return s, err
		}
		return s, nil
	}
	if err != nil {
		return DefaultSettings(), eris.Wrapf(err, "config: read settings %s", path)
	}

	s := DefaultSettings()
	if err := yaml.Unmarshal(data, s); err != nil {
		return DefaultSettings(), eris.Wrapf(err, "config: parse settings %s", path)
	}
	if err := s.Validate(); err != nil {
		return DefaultSettings(), err
	}
	return s, nil
}

// SaveSettings writes the whole settings document atomically.
func SaveSettings(path string, s *Settings) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return eris.Wrap(err, "config: marshal settings")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "config: create settings dir %s", dir)
	}

	tmp, err := os.CreateTemp(dir, ".settings-*.yaml")
	if err != nil {
		return eris.Wrap(err, "config: create temp settings")
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err := tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck
		return eris.Wrap(err, "config: write temp settings")
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrap(err, "config: close temp settings")
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return eris.Wrap(err, "config: chmod temp settings")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return eris.Wrapf(err, "config: replace settings %s", path)
	}
	return nil
}
