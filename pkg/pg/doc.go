// Package pg connects to PostgreSQL through a pgx pool and applies goose
// migrations from an fs.FS.
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil { ... }
//	if err := pg.Migrate(ctx, pool, cfg, migrations, "migrations", log); err != nil { ... }
//
// Healthcheck returns a func(context.Context) error suitable for the ops
// server. The Is*Error helpers classify pgx and SQLSTATE errors.
package pg
