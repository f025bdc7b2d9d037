package fb

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Defaults applied by Config.withDefaults
const (
	DefaultUsername = "sysdba"
	DefaultPassword = "masterkey"
	DefaultCharset  = "NONE"
	DefaultPageSize = 4096
	DefaultDialect  = 3
)

// Config describes one database and how to talk to it.
type Config struct {
	Database      string // path or host:path
	Username      string
	Password      string
	Charset       string // connection character set sent as lc_ctype
	Role          string
	Encoding      string // text encoding of CHAR/VARCHAR data; derived from Charset when empty
	PageSize      int    // used by Create
	Dialect       int    // requested SQL dialect; lowered to the database's
	DowncaseNames bool   // lowercase all-uppercase field names
	Timezone      *time.Location
	Logger        *zap.Logger
	LibraryPath   string // fbclient to load; empty uses DefaultClient
}

// withDefaults fills in unset fields.
func (c Config) withDefaults() Config {
	if c.Username == "" {
		c.Username = DefaultUsername
	}
	if c.Password == "" {
		c.Password = DefaultPassword
	}
	if c.Charset == "" {
		c.Charset = DefaultCharset
	}
	if c.Encoding == "" {
		c.Encoding = encodingForCharset(c.Charset)
	}
	if c.PageSize == 0 {
		c.PageSize = DefaultPageSize
	}
	if c.Dialect == 0 {
		c.Dialect = DefaultDialect
	}
	if c.Timezone == nil {
		c.Timezone = time.Local
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c
}

// validPageSize reports whether n is a page size Firebird can create.
func validPageSize(n int) bool {
	switch n {
	case 1024, 2048, 4096, 8192, 16384, 32768:
		return true
	}
	return false
}

// dpb builds the database parameter block for attaching.
func (c Config) dpb() []byte {
	b := []byte{isc_dpb_version1}
	add := func(code byte, s string) {
		if len(s) > 255 {
			s = s[:255]
		}
		b = append(b, code, byte(len(s)))
		b = append(b, s...)
	}
	add(isc_dpb_user_name, c.Username)
	add(isc_dpb_password, c.Password)
	if c.Charset != "" {
		add(isc_dpb_lc_ctype, c.Charset)
	}
	if c.Role != "" {
		add(isc_dpb_sql_role_name, c.Role)
	}
	if c.Dialect != 0 {
		b = append(b, isc_dpb_sql_dialect, 4)
		b = append(b, byte(c.Dialect), 0, 0, 0)
	}
	return b
}

// createStatement is the CREATE DATABASE text run by Database.Create.
func (c Config) createStatement() string {
	return fmt.Sprintf("CREATE DATABASE '%s' USER '%s' PASSWORD '%s' PAGE_SIZE = %d DEFAULT CHARACTER SET %s;",
		quoteLiteral(c.Database), quoteLiteral(c.Username), quoteLiteral(c.Password), c.PageSize, c.Charset)
}

func quoteLiteral(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// ParseDSN parses a semicolon separated key=value connection string such as
//
//	database=localhost:/data/app.fdb;username=sysdba;password=secret;charset=UTF8
//
// Keys are case-insensitive. Accepted keys: database (db), username (user,
// uid), password (pass, pwd), charset (lc_ctype), role, encoding, page_size,
// dialect, downcase_names, timezone and library (fbclient).
func ParseDSN(dsn string) (Config, error) {
	var cfg Config
	for _, pair := range strings.Split(dsn, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, val, ok := strings.Cut(pair, "=")
		if !ok {
			return Config{}, errors.Errorf("invalid DSN entry %q: expected key=value", pair)
		}
		key = strings.ToLower(strings.TrimSpace(key))
		val = strings.TrimSpace(val)

		switch key {
		case "database", "db":
			cfg.Database = val
		case "username", "user", "uid":
			cfg.Username = val
		case "password", "pass", "pwd":
			cfg.Password = val
		case "charset", "lc_ctype":
			cfg.Charset = val
		case "role":
			cfg.Role = val
		case "encoding":
			cfg.Encoding = val
		case "page_size":
			n, err := strconv.Atoi(val)
			if err != nil {
				return Config{}, errors.Wrapf(err, "invalid page_size %q", val)
			}
			cfg.PageSize = n
		case "dialect":
			n, err := strconv.Atoi(val)
			if err != nil || n < 1 || n > 3 {
				return Config{}, errors.Errorf("invalid dialect %q", val)
			}
			cfg.Dialect = n
		case "downcase_names":
			b, err := strconv.ParseBool(val)
			if err != nil {
				return Config{}, errors.Wrapf(err, "invalid downcase_names %q", val)
			}
			cfg.DowncaseNames = b
		case "timezone":
			loc, err := time.LoadLocation(val)
			if err != nil {
				return Config{}, errors.Wrapf(err, "invalid timezone %q", val)
			}
			cfg.Timezone = loc
		case "library", "fbclient":
			cfg.LibraryPath = val
		default:
			return Config{}, errors.Errorf("unknown DSN key %q", key)
		}
	}
	if cfg.Database == "" {
		return Config{}, errors.New("database must be specified")
	}
	return cfg, nil
}
