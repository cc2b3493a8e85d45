package cli

import (
	"context"
	"fmt"
	"strconv"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/filecache/pkg/filecache"
)

// cacheCommands returns fresh commands bound to c. Flag sets keep parsed
// values, so callers build a new set per invocation.
func cacheCommands(c *filecache.Cache, now func() time.Time) []*Command {
	return []*Command{
		GetCmd(c),
		SetCmd(c),
		DelCmd(c),
		HasCmd(c),
		TTLCmd(c, now),
		ClearCmd(c),
		StatsCmd(c),
	}
}

func findCommand(cmds []*Command, name string) *Command {
	for _, cmd := range cmds {
		if cmd.Name == name {
			return cmd
		}
	}

	return nil
}

// GetCmd returns the get command.
func GetCmd(c *filecache.Cache) *Command {
	flags := flag.NewFlagSet("get", flag.ContinueOnError)
	def := flags.String("default", "", "Print `value` instead of failing when the key is missing")
	withType := flags.BoolP("type", "t", false, "Print the value type before the value")

	return &Command{
		Name:  "get",
		Args:  []Arg{keyArg},
		Flags: flags,
		Short: "Print a cached value",
		Long: `Print the value stored under <key>.

Fails when the key is missing or expired, unless --default is given.`,
		Examples: []string{"get -t session", "get --default 0 counter"},
		Exec: func(_ context.Context, o *IO, args []string) error {
			key := args[0]

			v, ok := c.Lookup(key)
			if !ok {
				if flags.Changed("default") {
					o.Println(*def)

					return nil
				}

				return fmt.Errorf("%w: %s", ErrKeyNotFound, key)
			}

			if *withType {
				o.Printf("%s\t%s\n", v.Kind(), v)

				return nil
			}

			o.Println(v.String())

			return nil
		},
	}
}

// SetCmd returns the set command.
func SetCmd(c *filecache.Cache) *Command {
	flags := flag.NewFlagSet("set", flag.ContinueOnError)
	kindName := flags.StringP("type", "t", "string", "Value `type`: string, integer, float, boolean, array, map")
	ttl := flags.Duration("ttl", 0, "Expire after `duration` (e.g. 90s, 1h30m)")
	ttlSeconds := flags.Int64("ttl-seconds", 0, "Expire after `n` seconds")

	return &Command{
		Name:  "set",
		Args:  []Arg{keyArg, valueArg},
		Flags: flags,
		Short: "Store a value",
		Long: `Store <value> under <key>.

Arrays and maps are given as JSON. Without --ttl or --ttl-seconds the
entry never expires.`,
		Examples: []string{
			"set greeting hello",
			"set -t integer --ttl 1h30m hits 42",
			"set -t array nums '[1, 2, 3]'",
		},
		Exec: func(_ context.Context, _ *IO, args []string) error {
			kind, err := filecache.ParseKind(*kindName)
			if err != nil {
				return err
			}

			v, err := filecache.ParseValue(kind, args[1])
			if err != nil {
				return err
			}

			var entryTTL filecache.TTL

			switch {
			case flags.Changed("ttl") && flags.Changed("ttl-seconds"):
				return ErrTTLFlagsExclusive
			case flags.Changed("ttl"):
				entryTTL = filecache.Duration(*ttl)
			case flags.Changed("ttl-seconds"):
				entryTTL = filecache.Seconds(*ttlSeconds)
			}

			return c.Set(args[0], v, entryTTL)
		},
	}
}

// DelCmd returns the del command.
func DelCmd(c *filecache.Cache) *Command {
	return &Command{
		Name:  "del",
		Args:  []Arg{keysArg},
		Short: "Delete keys",
		Long:  "Delete every given key and print how many existed. Missing keys are reported as warnings.",
		Exec: func(_ context.Context, o *IO, args []string) error {
			deleted := 0

			for _, key := range args {
				if c.Delete(key) {
					deleted++

					continue
				}

				o.Warn(key, ErrKeyNotFound.Error()+", nothing deleted")
			}

			o.Field("deleted", deleted)

			return nil
		},
	}
}

// HasCmd returns the has command.
func HasCmd(c *filecache.Cache) *Command {
	return &Command{
		Name:  "has",
		Args:  []Arg{keyArg},
		Short: "Print whether a key is cached",
		Exec: func(_ context.Context, o *IO, args []string) error {
			o.Println(strconv.FormatBool(c.Has(args[0])))

			return nil
		},
	}
}

// ClearCmd returns the clear command.
func ClearCmd(c *filecache.Cache) *Command {
	return &Command{
		Name:  "clear",
		Short: "Delete every entry",
		Exec: func(context.Context, *IO, []string) error {
			c.Clear()

			return nil
		},
	}
}

// StatsCmd returns the stats command.
func StatsCmd(c *filecache.Cache) *Command {
	return &Command{
		Name:  "stats",
		Short: "Show cache statistics",
		Exec: func(_ context.Context, o *IO, _ []string) error {
			s := c.Stats()

			o.Field("dir", c.Dir())
			o.Field("entries", s.Entries)
			o.Field("pending_writes", s.PendingWrites)
			o.Field("pending_deletes", s.PendingDeletes)
			o.Field("cached", s.Cached)

			return nil
		},
	}
}

// TTLCmd returns the ttl command.
func TTLCmd(c *filecache.Cache, now func() time.Time) *Command {
	return &Command{
		Name:  "ttl",
		Args:  []Arg{keyArg},
		Short: "Print the remaining time to live of a key",
		Long:  `Print the remaining time to live of <key>, or "none" if it never expires.`,
		Exec: func(_ context.Context, o *IO, args []string) error {
			key := args[0]

			if !c.Has(key) {
				return fmt.Errorf("%w: %s", ErrKeyNotFound, key)
			}

			entry, _ := c.Entry(key)

			at, ok := entry.ExpiresAt()
			if !ok {
				o.Println("none")

				return nil
			}

			o.Println(at.Sub(now()).Round(time.Second).String())

			return nil
		},
	}
}
