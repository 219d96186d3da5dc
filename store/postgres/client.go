// Package postgres 是 core 数据接口的 Postgres/PostGIS 实现：
// 交互日志、画像文本、品牌目录、品牌向量（pgvector）与门店地理查询。
//
// SQL 用 goqu 构建（postgres 方言、预编译参数），用 sqlx 执行和扫描。
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/rushteam/venuerec/core"
)

// Options 连接池参数。
type Options struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Client 持有连接池与查询构建器，各适配器共享。
type Client struct {
	db *sqlx.DB
	qb goqu.DialectWrapper
}

// Open 建立连接池并 ping；失败返回 UNAVAILABLE。
func Open(ctx context.Context, opts Options) (*Client, error) {
	db, err := sqlx.Open("postgres", opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, core.Unavailable(core.ModuleStore, fmt.Errorf("ping postgres: %w", err))
	}
	return NewClient(db), nil
}

// NewClient 包装已有连接（测试中传入 sqlmock）。
func NewClient(db *sqlx.DB) *Client {
	return &Client{db: db, qb: goqu.Dialect("postgres")}
}

func (c *Client) DB() *sqlx.DB { return c.db }

// Ping 用于健康检查。
func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *Client) Close() error {
	return c.db.Close()
}

// selectInto 构建并执行查询，数据库错误统一包装为 UNAVAILABLE。
func (c *Client) selectInto(ctx context.Context, dest any, what string, ds *goqu.SelectDataset) error {
	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return fmt.Errorf("build %s query: %w", what, err)
	}
	if err := c.db.SelectContext(ctx, dest, query, args...); err != nil {
		return core.Unavailable(core.ModuleStore, fmt.Errorf("query %s: %w", what, err))
	}
	return nil
}

// text 把 bigint 主键等列转成文本，领域层 ID 统一为 string。
func text(col string) exp.CastExpression {
	return goqu.Cast(goqu.I(col), "TEXT")
}
