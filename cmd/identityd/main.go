// Command identityd runs the identity service: account lifecycle, token
// issuance and rotation, role-based authorization, and federated login.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	goredis "github.com/redis/go-redis/v9"

	"github.com/skillsenselab/identity/account"
	"github.com/skillsenselab/identity/config"
	"github.com/skillsenselab/identity/federation"
	"github.com/skillsenselab/identity/logger"
	"github.com/skillsenselab/identity/password"
	"github.com/skillsenselab/identity/rbac"
	"github.com/skillsenselab/identity/server"
	"github.com/skillsenselab/identity/store"
	"github.com/skillsenselab/identity/token"
	"github.com/skillsenselab/identity/version"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	seed := flag.Bool("seed", false, "create the admin and default roles, then exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.NewDefault("identityd").Fatal("configuration error", map[string]interface{}{"error": err.Error()})
	}

	logger.Init(cfg.Logger)
	log := logger.New(&cfg.Logger, cfg.Logger.Service)
	log.Info("starting", logger.Fields("version", version.Short()))

	db, err := store.Open(cfg.Database.DSN, log)
	if err != nil {
		log.Fatal("store open failed", logger.ErrorFields("startup", err))
	}
	defer db.Close()

	ctx := context.Background()

	if *seed {
		seedRoles(ctx, db, cfg, log)
		return
	}

	sessions := store.SessionStore(db)
	if cfg.Redis.Enabled {
		rdb := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatal("redis unreachable", logger.ErrorFields("startup", err))
		}
		defer rdb.Close()
		sessions = store.NewRedisSessions(rdb, log)
		log.Info("using redis session store", logger.Fields("addr", cfg.Redis.Addr))
	}

	tokens, err := token.NewService(cfg.Token, sessions, db, log)
	if err != nil {
		log.Fatal("token service init failed", logger.ErrorFields("startup", err))
	}

	authz := rbac.NewAuthorizer(db, cfg.Account.AdminRole, log)
	// A deployment whose admin role cannot be resolved must not come up
	// half-working.
	if err := authz.Verify(ctx); err != nil {
		log.Fatal("admin role check failed; run with -seed to create it", logger.ErrorFields("startup", err))
	}
	manager := rbac.NewManager(db, authz, log)

	registry, err := federation.NewRegistry(cfg.Federation, log)
	if err != nil {
		log.Fatal("federation init failed", logger.ErrorFields("startup", err))
	}

	accounts, err := account.NewService(cfg.Account, db, password.NewBcryptHasher(), tokens, registry, account.NewLogMailer(log), log)
	if err != nil {
		log.Fatal("account service init failed", logger.ErrorFields("startup", err))
	}

	srv := server.New(cfg.Server, server.Deps{
		Accounts: accounts,
		Tokens:   tokens,
		Authz:    authz,
		Manager:  manager,
	}, log)
	if err := srv.Start(ctx); err != nil {
		log.Fatal("server start failed", logger.ErrorFields("startup", err))
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	if err := srv.Stop(ctx); err != nil {
		log.Error("shutdown error", logger.ErrorFields("shutdown", err))
	}
}

// seedRoles creates the configured admin and default roles if absent.
func seedRoles(ctx context.Context, db *store.Gorm, cfg *config.Config, log *logger.Logger) {
	for _, name := range []string{cfg.Account.AdminRole, cfg.Account.DefaultRole} {
		if name == "" {
			continue
		}
		existing, err := db.FindRoleByName(ctx, name)
		if err != nil {
			log.Fatal("seed failed", logger.ErrorFields("seed", err))
		}
		if existing != nil {
			log.Info("role exists", logger.Fields("name", name))
			continue
		}
		if err := db.CreateRole(ctx, &store.Role{Name: name}); err != nil {
			log.Fatal("seed failed", logger.ErrorFields("seed", err))
		}
		log.Info("role created", logger.Fields("name", name))
	}
}
