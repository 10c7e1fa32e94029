package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/warp/sales-engine/config"
)

var configEnvVars = []string{
	"SALES_CONFIG", "SALES_ADDR", "SALES_STORE", "SALES_SQLITE_PATH",
	"SALES_RTDB_URL", "SALES_RTDB_TIMEOUT", "SALES_RTDB_RETRIES",
	"SALES_JWT_SECRET", "SALES_CORS_ORIGINS", "SALES_LOG_LEVEL",
}

func clearConfigEnvVars() {
	for _, k := range configEnvVars {
		_ = os.Unsetenv(k)
	}
}

func writeFile(t *testing.T, name, content string) string {
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		clearConfigEnvVars()
		defer clearConfigEnvVars()

		convey.Convey("When loading defaults only", func() {
			cfg, err := config.Load()

			convey.Convey("Then the defaults are returned", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.Store, convey.ShouldEqual, config.BackendSQLite)
				convey.So(cfg.RTDBTimeout, convey.ShouldEqual, 10*time.Second)
				convey.So(cfg.Timezone, convey.ShouldEqual, "America/Sao_Paulo")
				convey.So(cfg.AuthEnabled(), convey.ShouldBeFalse)
			})
		})

		convey.Convey("When a YAML file and environment are both set", func() {
			path := writeFile(t, "sales.yaml", `
addr: ":9090"
store: rtdb
rtdb_url: "https://example-rtdb.firebaseio.com"
rtdb_timeout: 3s
rtdb_retries: 5
`)
			_ = os.Setenv("SALES_CONFIG", path)
			_ = os.Setenv("SALES_ADDR", ":7070")
			_ = os.Setenv("SALES_JWT_SECRET", "s3cret")
			_ = os.Setenv("SALES_CORS_ORIGINS", "https://a.example,https://b.example")

			cfg, err := config.Load()

			convey.Convey("Then the environment overrides the file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":7070")
				convey.So(cfg.Store, convey.ShouldEqual, config.BackendRTDB)
				convey.So(cfg.RTDBTimeout, convey.ShouldEqual, 3*time.Second)
				convey.So(cfg.AuthEnabled(), convey.ShouldBeTrue)
				convey.So(cfg.CORSOrigins, convey.ShouldResemble, []string{"https://a.example", "https://b.example"})
			})

			convey.Convey("Then the RTDB client config carries the retry policy", func() {
				rc := cfg.RTDB()
				convey.So(rc.BaseURL, convey.ShouldEqual, "https://example-rtdb.firebaseio.com")
				convey.So(rc.Resilience.MaxRetries, convey.ShouldEqual, 5)
				convey.So(rc.Resilience.InitialBackoff, convey.ShouldEqual, 200*time.Millisecond)
			})
		})

		convey.Convey("When the rtdb store has no URL", func() {
			_ = os.Setenv("SALES_STORE", "rtdb")

			cfg, err := config.Load()

			convey.Convey("Then validation fails", func() {
				convey.So(cfg, convey.ShouldBeNil)
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the store is unknown", func() {
			_ = os.Setenv("SALES_STORE", "postgres")

			_, err := config.Load()

			convey.Convey("Then validation fails", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "postgres")
			})
		})

		convey.Convey("When the YAML file does not exist", func() {
			_ = os.Setenv("SALES_CONFIG", "/non/existent/sales.yaml")

			cfg, err := config.Load()

			convey.Convey("Then loading fails", func() {
				convey.So(cfg, convey.ShouldBeNil)
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When a .env file is present", func() {
			path := writeFile(t, ".env", "SALES_ADDR=:6060\nSALES_LOG_LEVEL=debug\n")
			_ = os.Setenv("SALES_LOG_LEVEL", "warn")

			err := config.LoadDotEnv(path, filepath.Join(t.TempDir(), "missing.env"))
			cfg, loadErr := config.Load()

			convey.Convey("Then it fills unset variables only", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(loadErr, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":6060")
				convey.So(cfg.LogLevel, convey.ShouldEqual, "warn")
			})
		})
	})
}
