// Package logger provee un logger Zap singleton con scoping por contexto.
//
// # Design Decisions
//
//   - Singleton: una sola instancia global inicializada con Init().
//   - Context Scoping: cada corrida y cada cluster llevan su propio logger
//     "scoped" (run_id, cluster) propagado por context.Context.
//   - Environments: "dev" usa consola con colores, "prod" usa JSON.
//   - Levels: debug, info, warn, error (configurable via LOG_LEVEL).
//
// # Usage
//
// Inicialización (una vez en main.go):
//
//	logger.Init(logger.Config{
//	    Env:   os.Getenv("APP_ENV"),   // "dev" o "prod"
//	    Level: os.Getenv("LOG_LEVEL"), // "debug", "info", "warn", "error"
//	})
//	defer logger.Sync()
//
// En el orquestador y sus componentes (con contexto):
//
//	log := logger.From(ctx)
//	log.Info("reconfigure task submitted", logger.Host(h.Name), logger.TaskID(id))
//
// Sin contexto (fallback a singleton):
//
//	logger.L().Info("run started")
package logger
