package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/liverpool/kvcache/internal/cache"
)

var (
	redisAddr   string
	redisPass   string
	redisDB     int
	redisPrefix string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "kvcache",
		Short: "kvcache - JSON value cache over Redis",
		Long:  "A cache service storing JSON values in Redis with per-key TTL management",
	}

	rootCmd.PersistentFlags().StringVar(&redisAddr, "redis", "localhost:6379", "Redis address")
	rootCmd.PersistentFlags().StringVar(&redisPass, "redis-pass", "", "Redis password")
	rootCmd.PersistentFlags().IntVar(&redisDB, "redis-db", 0, "Redis database")
	rootCmd.PersistentFlags().StringVar(&redisPrefix, "prefix", "", "Key prefix")

	rootCmd.AddCommand(
		getCmd(),
		putCmd(),
		updateCmd(),
		deleteCmd(),
		ttlCmd(),
		expireCmd(),
		existsCmd(),
		keysCmd(),
		serveCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openCache() (*cache.RedisCache, error) {
	return cache.NewRedisCache(cache.RedisConfig{
		Addr:         redisAddr,
		Password:     redisPass,
		DB:           redisDB,
		KeyPrefix:    redisPrefix,
		PoolSize:     5,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolTimeout:  time.Second,
	})
}

func getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get the value stored under a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openCache()
			if err != nil {
				return err
			}
			defer c.Close()

			value, err := c.Get(context.Background(), args[0])
			if err != nil {
				return err
			}
			fmt.Println(string(value))
			return nil
		},
	}
}

func putCmd() *cobra.Command {
	var ttlSeconds int64

	cmd := &cobra.Command{
		Use:   "put <key> <value>",
		Short: "Store a value, optionally with a TTL",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openCache()
			if err != nil {
				return err
			}
			defer c.Close()

			ctx := context.Background()
			if ttlSeconds > 0 {
				err = c.PutWithTTL(ctx, args[0], []byte(args[1]), time.Duration(ttlSeconds)*time.Second)
			} else {
				err = c.Put(ctx, args[0], []byte(args[1]))
			}
			if err != nil {
				return err
			}
			fmt.Println("stored")
			return nil
		},
	}
	cmd.Flags().Int64Var(&ttlSeconds, "ttl", 0, "TTL in seconds (0 = persistent)")
	return cmd
}

func updateCmd() *cobra.Command {
	var ttlSeconds int64

	cmd := &cobra.Command{
		Use:   "update <key> <value>",
		Short: "Update an existing key, preserving its TTL unless --ttl is given",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openCache()
			if err != nil {
				return err
			}
			defer c.Close()

			ctx := context.Background()
			var applied bool
			if ttlSeconds > 0 {
				applied, err = c.UpdateWithTTL(ctx, args[0], []byte(args[1]), time.Duration(ttlSeconds)*time.Second)
			} else {
				applied, err = c.Update(ctx, args[0], []byte(args[1]))
			}
			if err != nil {
				return err
			}
			if !applied {
				return fmt.Errorf("key not found: %s", args[0])
			}
			fmt.Println("updated")
			return nil
		},
	}
	cmd.Flags().Int64Var(&ttlSeconds, "ttl", 0, "replace the TTL (seconds) instead of preserving it")
	return cmd
}

func deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <key>",
		Short: "Delete a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openCache()
			if err != nil {
				return err
			}
			defer c.Close()

			deleted, err := c.Delete(context.Background(), args[0])
			if err != nil {
				return err
			}
			if !deleted {
				fmt.Println("key was absent")
				return nil
			}
			fmt.Println("deleted")
			return nil
		},
	}
}

func ttlCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ttl <key>",
		Short: "Show the remaining TTL of a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openCache()
			if err != nil {
				return err
			}
			defer c.Close()

			ttl, err := c.GetTTL(context.Background(), args[0])
			if err != nil {
				return err
			}
			if !ttl.HasExpiry {
				fmt.Println("persistent (no TTL)")
				return nil
			}
			fmt.Println(ttl.Remaining)
			return nil
		},
	}
}

func expireCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "expire <key> <seconds>",
		Short: "Replace the TTL of a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var secs int64
			if _, err := fmt.Sscanf(args[1], "%d", &secs); err != nil || secs <= 0 {
				return fmt.Errorf("seconds must be a positive integer")
			}

			c, err := openCache()
			if err != nil {
				return err
			}
			defer c.Close()

			applied, err := c.UpdateTTL(context.Background(), args[0], time.Duration(secs)*time.Second)
			if err != nil {
				return err
			}
			if !applied {
				return fmt.Errorf("key not found: %s", args[0])
			}
			fmt.Println("ttl updated")
			return nil
		},
	}
}

func existsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "exists <key>",
		Short: "Check whether a key exists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openCache()
			if err != nil {
				return err
			}
			defer c.Close()

			exists, err := c.Exists(context.Background(), args[0])
			if err != nil {
				return err
			}
			fmt.Println(exists)
			return nil
		},
	}
}

func keysCmd() *cobra.Command {
	var pattern string

	cmd := &cobra.Command{
		Use:   "keys",
		Short: "List keys, optionally filtered by a glob pattern",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openCache()
			if err != nil {
				return err
			}
			defer c.Close()

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			keys, err := c.Keys(ctx, pattern)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "KEY\tTTL")
			for _, key := range keys {
				ttl, err := c.GetTTL(ctx, key)
				switch {
				case err != nil:
					fmt.Fprintf(w, "%s\t-\n", key)
				case !ttl.HasExpiry:
					fmt.Fprintf(w, "%s\tpersistent\n", key)
				default:
					fmt.Fprintf(w, "%s\t%s\n", key, ttl.Remaining)
				}
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&pattern, "pattern", "*", "glob pattern")
	return cmd
}
