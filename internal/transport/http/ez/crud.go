package ez

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	resp "ethio-home/internal/transport/http/response"
)

type Op string

const (
	OpList   Op = "list"
	OpRead   Op = "read"
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// CrudHooks 资源自己的扩展点；tx 为当前写事务
type CrudHooks[T any] struct {
	Bind              func(c *gin.Context, actor Actor, m *T) error
	BeforeCreate      func(c *gin.Context, tx *gorm.DB, actor Actor, m *T) error
	BeforeUpdate      func(c *gin.Context, tx *gorm.DB, actor Actor, cur, in *T) error
	AfterRead         func(c *gin.Context, m *T)
	ListDefaultFilter func(c *gin.Context, actor Actor, q *gorm.DB) *gorm.DB
	// OnDelete 替代物理删除（软删）
	OnDelete func(c *gin.Context, tx *gorm.DB, actor Actor, m *T) error
	// AfterWrite 事务提交后执行（清缓存等）
	AfterWrite func(c *gin.Context, m *T)
	// MapError 改写写事务的错误（例如唯一索引冲突换成业务提示）
	MapError func(err error) error
}

type CrudConfig[T any] struct {
	DB     *gorm.DB
	Public *gin.RouterGroup // 可选：list/get 挂在免登录分组
	Group  *gin.RouterGroup // 已鉴权分组（能拿 userId）
	Path   string
	New    func() *T

	Hooks CrudHooks[T]

	AllowCreate bool
	AllowList   bool
	AllowGet    bool
	AllowUpdate bool
	AllowDelete bool

	// Roles 按操作限定角色，未配置即不限
	Roles map[Op][]string
	// CanAct 分发前统一判定一次；list 时 m 为 nil
	CanAct func(actor Actor, m *T, op Op) bool
	// Protected 非 staff 更新时忽略的字段
	Protected []string
	Preload   []string
	// Scope 作用于所有读取（例如只看 active 用户）
	Scope func(q *gorm.DB) *gorm.DB
	// Load 覆盖单条读取（走缓存）
	Load func(c *gin.Context, id string) (*T, error)
	Use  map[Op][]gin.HandlerFunc
}

// 始终不可 patch 的字段
var immutable = []string{"ID", "CreatedAt"}

func (cfg *CrudConfig[T]) handlers(op Op, h gin.HandlerFunc) []gin.HandlerFunc {
	return append(append([]gin.HandlerFunc{}, cfg.Use[op]...), h)
}

// gate 角色 + CanAct
func (cfg *CrudConfig[T]) gate(c *gin.Context, actor Actor, m *T, op Op) bool {
	if roles := cfg.Roles[op]; len(roles) > 0 {
		if actor.Anonymous() {
			Fail(c, Unauthorized(MsgNotLoggedIn))
			return false
		}
		if !actor.HasRole(roles) {
			Fail(c, Forbidden(MsgNoPermission))
			return false
		}
	}
	if cfg.CanAct != nil && !cfg.CanAct(actor, m, op) {
		Fail(c, Forbidden(MsgNoPermission))
		return false
	}
	return true
}

func (cfg *CrudConfig[T]) scoped(q *gorm.DB) *gorm.DB {
	if cfg.Scope != nil {
		q = cfg.Scope(q)
	}
	return q
}

func (cfg *CrudConfig[T]) find(c *gin.Context, db *gorm.DB, id string) (*T, error) {
	q := cfg.scoped(db.WithContext(c.Request.Context()))
	for _, p := range cfg.Preload {
		q = q.Preload(p)
	}
	m := cfg.New()
	if err := q.Where(clause.Eq{Column: col("id"), Value: id}).First(m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFound(MsgNoDocument)
		}
		return nil, Internal("load failed", err)
	}
	return m, nil
}

func (cfg *CrudConfig[T]) bind(c *gin.Context, actor Actor, m *T) error {
	if cfg.Hooks.Bind != nil {
		return cfg.Hooks.Bind(c, actor, m)
	}
	if err := c.ShouldBind(m); err != nil {
		return BindError(err)
	}
	return nil
}

func (cfg *CrudConfig[T]) mapError(err error) error {
	if cfg.Hooks.MapError != nil {
		return cfg.Hooks.MapError(err)
	}
	return err
}

func (cfg *CrudConfig[T]) afterRead(c *gin.Context, m *T) {
	if cfg.Hooks.AfterRead != nil {
		cfg.Hooks.AfterRead(c, m)
	}
}

// Crud 注册 list/get/create/update/delete
func Crud[T any](cfg CrudConfig[T]) {
	RegisterValidators()
	if !cfg.AllowCreate && !cfg.AllowGet && !cfg.AllowList && !cfg.AllowUpdate && !cfg.AllowDelete {
		cfg.AllowCreate, cfg.AllowList, cfg.AllowGet, cfg.AllowUpdate, cfg.AllowDelete = true, true, true, true, true
	}
	read := cfg.Group
	if cfg.Public != nil {
		read = cfg.Public
	}

	if cfg.AllowList {
		read.GET(cfg.Path, cfg.handlers(OpList, func(c *gin.Context) {
			actor := ActorFrom(c)
			if !cfg.gate(c, actor, nil, OpList) {
				return
			}
			q := cfg.scoped(cfg.DB.WithContext(c.Request.Context()).Model(cfg.New()))
			if cfg.Hooks.ListDefaultFilter != nil {
				q = cfg.Hooks.ListDefaultFilter(c, actor, q)
			}
			res, err := QueryList[T](c, q)
			if err != nil {
				Fail(c, err)
				return
			}
			for i := range res.Items {
				cfg.afterRead(c, &res.Items[i])
			}
			res.Respond(c)
		})...)
	}

	if cfg.AllowGet {
		read.GET(cfg.Path+"/:id", cfg.handlers(OpRead, func(c *gin.Context) {
			var m *T
			var err error
			if cfg.Load != nil {
				m, err = cfg.Load(c, c.Param("id"))
			} else {
				m, err = cfg.find(c, cfg.DB, c.Param("id"))
			}
			if err != nil {
				Fail(c, err)
				return
			}
			if !cfg.gate(c, ActorFrom(c), m, OpRead) {
				return
			}
			cfg.afterRead(c, m)
			c.JSON(http.StatusOK, resp.OK(m))
		})...)
	}

	if cfg.AllowCreate {
		cfg.Group.POST(cfg.Path, cfg.handlers(OpCreate, func(c *gin.Context) {
			actor := ActorFrom(c)
			if actor.Anonymous() {
				Fail(c, Unauthorized(MsgNotLoggedIn))
				return
			}
			if !actor.HasRole(cfg.Roles[OpCreate]) {
				Fail(c, Forbidden(MsgNoPermission))
				return
			}
			m := cfg.New()
			if err := cfg.bind(c, actor, m); err != nil {
				Fail(c, err)
				return
			}
			err := cfg.DB.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
				if cfg.Hooks.BeforeCreate != nil {
					if err := cfg.Hooks.BeforeCreate(c, tx, actor, m); err != nil {
						return err
					}
				}
				if cfg.CanAct != nil && !cfg.CanAct(actor, m, OpCreate) {
					return Forbidden(MsgNoPermission)
				}
				return tx.Omit(clause.Associations).Create(m).Error
			})
			if err != nil {
				Fail(c, cfg.mapError(err))
				return
			}
			if cfg.Hooks.AfterWrite != nil {
				cfg.Hooks.AfterWrite(c, m)
			}
			cfg.afterRead(c, m)
			c.JSON(http.StatusCreated, resp.OK(m))
		})...)
	}

	if cfg.AllowUpdate {
		cfg.Group.PATCH(cfg.Path+"/:id", cfg.handlers(OpUpdate, func(c *gin.Context) {
			actor := ActorFrom(c)
			id := c.Param("id")
			cur, err := cfg.find(c, cfg.DB, id)
			if err != nil {
				Fail(c, err)
				return
			}
			if !cfg.gate(c, actor, cur, OpUpdate) {
				return
			}
			in := cfg.New()
			if err := cfg.bind(c, actor, in); err != nil {
				Fail(c, err)
				return
			}
			omit := append([]string{}, immutable...)
			if !actor.IsStaff() {
				omit = append(omit, cfg.Protected...)
			}
			omit = append(omit, clause.Associations)

			err = cfg.DB.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
				if cfg.Hooks.BeforeUpdate != nil {
					if err := cfg.Hooks.BeforeUpdate(c, tx, actor, cur, in); err != nil {
						return err
					}
				}
				return tx.Model(cur).Omit(omit...).Updates(in).Error
			})
			if err != nil {
				Fail(c, cfg.mapError(err))
				return
			}
			m, err := cfg.find(c, cfg.DB, id)
			if err != nil {
				Fail(c, err)
				return
			}
			if cfg.Hooks.AfterWrite != nil {
				cfg.Hooks.AfterWrite(c, m)
			}
			cfg.afterRead(c, m)
			c.JSON(http.StatusOK, resp.OK(m))
		})...)
	}

	if cfg.AllowDelete {
		cfg.Group.DELETE(cfg.Path+"/:id", cfg.handlers(OpDelete, func(c *gin.Context) {
			actor := ActorFrom(c)
			cur, err := cfg.find(c, cfg.DB, c.Param("id"))
			if err != nil {
				Fail(c, err)
				return
			}
			if !cfg.gate(c, actor, cur, OpDelete) {
				return
			}
			err = cfg.DB.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
				if cfg.Hooks.OnDelete != nil {
					return cfg.Hooks.OnDelete(c, tx, actor, cur)
				}
				return tx.Delete(cur).Error
			})
			if err != nil {
				Fail(c, err)
				return
			}
			if cfg.Hooks.AfterWrite != nil {
				cfg.Hooks.AfterWrite(c, cur)
			}
			c.Status(http.StatusNoContent)
		})...)
	}
}
