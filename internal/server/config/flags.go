package config

import (
	"flag"
	"os"
	"strings"
	"time"

	"github.com/dmitrijs2005/spaceshare/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-d string   PostgreSQL DSN
//	-s string   JWT HMAC secret key
//	-u string   S3 root user
//	-p string   S3 root password
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//	-k string   Kafka brokers, comma-separated
//	-t string   Kafka chat topic
//	-n string   NATS URL
//	-r string   Redis address
//	-m int      group-members cache TTL, minutes
//	-dev        development mode (human-readable logging)
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with other components.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:],
		[]string{"-a", "-d", "-s", "-u", "-p", "-b", "-g", "-e", "-k", "-t", "-n", "-r", "-m", "-dev"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	brokers := fs.String("k", strings.Join(config.KafkaBrokers, ","), "Kafka brokers (comma-separated)")
	fs.StringVar(&config.KafkaChatTopic, "t", config.KafkaChatTopic, "Kafka chat topic")
	fs.StringVar(&config.NatsURL, "n", config.NatsURL, "NATS URL")
	fs.StringVar(&config.RedisAddr, "r", config.RedisAddr, "Redis address")

	membersCacheTTL := fs.Int("m", int(config.MembersCacheTTL.Minutes()), "group-members cache TTL (in minutes)")
	fs.BoolVar(&config.Development, "dev", config.Development, "development mode")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.KafkaBrokers = strings.Split(*brokers, ",")
	config.MembersCacheTTL = time.Duration(*membersCacheTTL) * time.Minute
}
