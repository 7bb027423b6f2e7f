package cmd

import (
	"errors"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spigell/interviewer/internal/ai/gemini"
	"github.com/spigell/interviewer/internal/interview"
	"github.com/spigell/interviewer/internal/requirements"
	"github.com/spigell/interviewer/internal/server"
	"github.com/spigell/interviewer/internal/store"
)

const (
	app = "interviewer"
)

type Config struct {
	AI        *AIConfig        `mapstructure:"ai"`
	Interview *InterviewConfig `mapstructure:"interview"`
	Scoring   *ScoringConfig   `mapstructure:"scoring"`
	Store     *StoreConfig     `mapstructure:"store"`
	Server    server.Config    `mapstructure:"server"`
}

type AIConfig struct {
	Provider string        `mapstructure:"provider"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Gemini   *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKey         string `mapstructure:"api-key"`
	APIKeyFile     string `mapstructure:"api-key-file"`
	Model          string `mapstructure:"model"`
	EmbeddingModel string `mapstructure:"embedding-model"`
	MaxRetries     int    `mapstructure:"max-retries"`
	MaxLogLength   int    `mapstructure:"max-log-length"`
}

type InterviewConfig struct {
	MaxQuestions     int   `mapstructure:"max-questions"`
	FollowupEligible []int `mapstructure:"followup-eligible"`
}

type ScoringConfig struct {
	Strategy     string              `mapstructure:"strategy"`
	Requirements requirements.Config `mapstructure:"requirements"`
}

type StoreConfig struct {
	Backend string            `mapstructure:"backend"`
	Dir     string            `mapstructure:"dir"`
	Redis   store.RedisConfig `mapstructure:"redis"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "interviewer runs automated behavioral interviews and scores the answers",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	bindings := map[string]string{
		"ai.gemini.api-key-file": "GEMINI_API_KEY_FILE",
		"ai.gemini.api-key":      "GEMINI_API_KEY",
		"store.redis.address":    "INTERVIEWER_REDIS_ADDRESS",
	}
	for key, env := range bindings {
		if err := viper.BindEnv(key, env); err != nil {
			log.Fatalf("binding %s environment variable: %v", env, err)
		}
	}

	viper.SetDefault("ai.provider", gemini.Provider)
	viper.SetDefault("ai.timeout", interview.DefaultGatewayTimeout)
	viper.SetDefault("ai.gemini.model", gemini.DefaultModel)
	viper.SetDefault("ai.gemini.embedding-model", gemini.DefaultEmbeddingModel)
	viper.SetDefault("ai.gemini.max-retries", gemini.DefaultMaxRetries)
	viper.SetDefault("ai.gemini.max-log-length", 200)
	viper.SetDefault("interview.max-questions", interview.DefaultMaxQuestions)
	viper.SetDefault("interview.followup-eligible", interview.DefaultFollowupEligible)
	viper.SetDefault("scoring.strategy", strategyJudgment)
	viper.SetDefault("store.backend", store.BackendFile)
	viper.SetDefault("store.dir", store.DefaultDir)
	viper.SetDefault("store.redis.namespace", store.DefaultNamespace)
	viper.SetDefault("server.port", server.DefaultPort)

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is interviewer.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	// A missing .env is fine, the environment may already be set.
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return
		}
		// We can't proceed if the config file parsed with error.
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	if config.AI == nil {
		config.AI = &AIConfig{}
	}
	if config.AI.Gemini == nil {
		config.AI.Gemini = &GeminiConfig{}
	}
	if config.Interview == nil {
		config.Interview = &InterviewConfig{}
	}
	if config.Scoring == nil {
		config.Scoring = &ScoringConfig{}
	}
	if config.Store == nil {
		config.Store = &StoreConfig{}
	}

	return config, nil
}
