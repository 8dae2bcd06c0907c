package main

import (
	// Go Internal Packages
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	// Local Packages
	config "nfc-bank/config"

	// External Packages
	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
	_ "github.com/jsternberg/zap-logfmt"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"go.uber.org/zap"
)

// LoadSecrets Loads the secret variables and overrides the config
func LoadSecrets(k config.Config) config.Config {
	if mongoURI := os.Getenv("MONGO_URI"); mongoURI != "" {
		k.Mongo.URI = mongoURI
	}
	if redisPassword := os.Getenv("REDIS_PASSWORD"); redisPassword != "" {
		k.Redis.Password = redisPassword
	}
	if kafkaBrokers := os.Getenv("KAFKA_BROKERS"); kafkaBrokers != "" {
		k.Kafka.Brokers = strings.Split(kafkaBrokers, ",")
	}
	if natsURL := os.Getenv("NATS_URL"); natsURL != "" {
		k.Nats.URL = natsURL
	}
	if natsToken := os.Getenv("NATS_TOKEN"); natsToken != "" {
		k.Nats.Token = natsToken
	}
	if isProdMode := os.Getenv("IS_PROD_MODE"); isProdMode != "" {
		k.IsProdMode = isProdMode == "true"
	}
	return k
}

// LoadConfig loads the default configuration and overrides it with the config file
// specified by the path defined in the config flag
func LoadConfig(configPath string) *koanf.Koanf {
	k := koanf.New(".")
	_ = k.Load(rawbytes.Provider(config.DefaultConfig), yaml.Parser())
	if configPath != "" {
		_ = k.Load(file.Provider(configPath), yaml.Parser())
	}
	return k
}

func NewLogger(conf config.Config) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "logfmt"
	if err := cfg.Level.UnmarshalText([]byte(conf.Logger.Level)); err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	cfg.InitialFields = make(map[string]any)
	cfg.InitialFields["host"], _ = os.Hostname()
	cfg.InitialFields["service"] = conf.Application
	cfg.OutputPaths = []string{"stdout"}
	return cfg.Build()
}

func main() {
	cli := kingpin.New("nfc-bank", "Prepaid NFC card terminal.")
	configPath := cli.Flag("config", "Path to the application config file").Short('c').Default("config.yml").String()
	timeout := cli.Flag("timeout", "How long one-shot commands wait for a card").Default("2m").Duration()

	serveCmd := cli.Command("serve", "Run the terminal with its HTTP API.").Default()

	readCmd := cli.Command("read", "Scan one card and print it.")

	increaseCmd := cli.Command("increase", "Add an amount to the next scanned card.")
	increaseAmount := increaseCmd.Arg("amount", "Amount to add").Required().String()
	increaseNote := increaseCmd.Flag("note", "Note stored with the transaction").String()

	decreaseCmd := cli.Command("decrease", "Charge an amount to the next scanned card.")
	decreaseAmount := decreaseCmd.Arg("amount", "Amount to charge").Required().String()
	decreaseNote := decreaseCmd.Flag("note", "Note stored with the transaction").String()
	overdraft := decreaseCmd.Flag("overdraft", "What to do when the balance is insufficient").
		Default("decline").Enum("decline", "zero", "negative")

	repairCmd := cli.Command("repair", "Initialise the next scanned card.")
	repairAmount := repairCmd.Arg("amount", "Balance written to the card").Default("0").String()
	repairHolder := repairCmd.Flag("holder", "Holder name; looked up in the directory when empty").String()
	repairNote := repairCmd.Flag("note", "Note stored with the transaction").String()

	historyCmd := cli.Command("history", "Print the transaction history of a card.")
	historyCard := historyCmd.Arg("card", "Card number or serial; scans a card when empty").String()

	replayCmd := cli.Command("replay-ledger", "Move parked ledger entries back into the ledger store.")

	command := kingpin.MustParse(cli.Parse(os.Args[1:]))

	_ = godotenv.Load()
	k := LoadConfig(*configPath)
	appKonf := config.Config{}

	// Unmarshalling config into struct
	if err := k.Unmarshal("", &appKonf); err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	// Update and Validate config before starting
	appKonf = LoadSecrets(appKonf)
	if err := appKonf.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	if !appKonf.IsProdMode {
		k.Print()
	}

	logger, err := NewLogger(appKonf)
	if err != nil {
		log.Fatalf("Error creating logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := NewApp(ctx, appKonf, logger)
	if err != nil {
		logger.Fatal("cannot start terminal", zap.Error(err))
	}
	defer app.Close()

	oneShot := func() (context.Context, context.CancelFunc) {
		return context.WithTimeout(ctx, *timeout)
	}

	switch command {
	case serveCmd.FullCommand():
		err = app.Serve(ctx)
	case readCmd.FullCommand():
		c, cancel := oneShot()
		defer cancel()
		err = app.Read(c, os.Stdout)
	case increaseCmd.FullCommand():
		c, cancel := oneShot()
		defer cancel()
		err = app.Increase(c, os.Stdout, *increaseAmount, *increaseNote)
	case decreaseCmd.FullCommand():
		c, cancel := oneShot()
		defer cancel()
		err = app.Decrease(c, os.Stdout, *decreaseAmount, *decreaseNote, *overdraft)
	case repairCmd.FullCommand():
		c, cancel := oneShot()
		defer cancel()
		err = app.Repair(c, os.Stdout, *repairAmount, *repairHolder, *repairNote)
	case historyCmd.FullCommand():
		c, cancel := oneShot()
		defer cancel()
		err = app.History(c, os.Stdout, *historyCard)
	case replayCmd.FullCommand():
		c, cancel := context.WithTimeout(ctx, 5*time.Minute)
		defer cancel()
		err = app.ReplayLedger(c)
	}

	if err != nil && ctx.Err() == nil {
		logger.Error("command failed", zap.String("command", command), zap.Error(err))
		app.Close()
		_ = logger.Sync()
		os.Exit(1)
	}
}
