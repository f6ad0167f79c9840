// Package dvctx is the central entry point spec §4.8 describes: a Context
// owning the user/device registry, the KV store, and the interactor, plus
// the thin operation orchestrators (exec, write/read, once/refresh, dl,
// pm install, svc enable/restart, dotutil sync/upload) built on top of
// internal/facade, internal/sync, internal/pm, internal/svc,
// internal/dotutil, and internal/dlcache.
//
// Grounded on dv-wrap/src/context.rs (original_source) for the
// registry-of-users-and-devices shape, adapted from rclone's global
// fs.Config-as-registry pattern (fs/config.go's package-level config
// store) into an instance-owned struct, since this system's Context is
// constructed once per run rather than process-global.
package dvctx

import (
	"context"
	"io"
	"time"

	"github.com/km0e/dv/internal/dlcache"
	"github.com/km0e/dv/internal/dotutil"
	"github.com/km0e/dv/internal/dverr"
	"github.com/km0e/dv/internal/facade"
	"github.com/km0e/dv/internal/interactor"
	"github.com/km0e/dv/internal/kv"
	"github.com/km0e/dv/internal/osclass"
	"github.com/km0e/dv/internal/pm"
	"github.com/km0e/dv/internal/ptyio"
	"github.com/km0e/dv/internal/svc"
	"github.com/km0e/dv/internal/sync"
	"github.com/km0e/dv/internal/user"
	"github.com/km0e/dv/internal/varpath"
)

// User is a named handle to a machine-and-account (spec §3): an
// administrative-privilege flag, the vars map normalize consults, and the
// facade wrapping its backend. Immutable after AddUser constructs it.
type User struct {
	UID      string
	IsSystem bool
	Vars     varpath.Vars
	Facade   *facade.Facade
}

// Hid returns the device id this user belongs to, or "" if none was set.
func (u *User) Hid() string { return u.Vars["hid"] }

// Os returns the user's OS classification, parsed from vars["os"] (spec
// §3 invariant 2: "every User exposes a stable os() accessor backed by
// vars[\"os\"]").
func (u *User) Os() osclass.Os { return osclass.Parse(u.Vars["os"]) }

// DeviceInfo is the detected OS family and package manager for a Device
// (spec §3), mirroring dv-wrap's device.rs.
type DeviceInfo struct {
	Os osclass.Os
	PM pm.Manager
}

// Device aggregates the users that share a hid (spec §3): at most one
// admin ("system") uid and any number of non-admin uids.
type Device struct {
	Hid     string
	Info    DeviceInfo
	infoSet bool
	System  string
	Users   []string
}

// Context owns the persistent KV store, the interactor, and the user/
// device registry; users are added monotonically and never removed (spec
// §3).
type Context struct {
	DB         kv.DB
	Interactor *interactor.Interactor
	DryRun     bool
	CacheDir   string

	users   map[string]*User
	devices map[string]*Device
	dotutil *dotutil.DotUtil
	dl      *dlcache.Cache
}

// New builds an empty Context. cacheDir may be "" if dl/dotutil aren't used.
func New(db kv.DB, it *interactor.Interactor, cacheDir string, dryRun bool) *Context {
	ctx := &Context{
		DB:         db,
		Interactor: it,
		DryRun:     dryRun,
		CacheDir:   cacheDir,
		users:      map[string]*User{},
		devices:    map[string]*Device{},
		dotutil:    dotutil.New(),
	}
	if cacheDir != "" {
		ctx.dl = dlcache.New(cacheDir, db)
	}
	return ctx
}

// Dotutil exposes the dotfile catalog registry for AddSchema/AddSource
// calls made before Context's DotSync/DotUpload operations run.
func (c *Context) Dotutil() *dotutil.DotUtil { return c.dotutil }

// AddUser registers backend under uid, wrapping it in a facade and
// aggregating it into the Device named by vars["hid"] (created lazily on
// first use, spec §3). isSystem marks the admin user for that device; a
// device's system slot is filled at most once (spec §3 invariant 4).
func (c *Context) AddUser(uid string, backend user.Backend, vars varpath.Vars, isSystem bool) (*User, error) {
	if _, exists := c.users[uid]; exists {
		return nil, dverr.New(dverr.Unknown, "user already registered: "+uid)
	}
	u := &User{UID: uid, IsSystem: isSystem, Vars: vars, Facade: facade.New(backend, vars)}
	c.users[uid] = u

	if hid := u.Hid(); hid != "" {
		dev, ok := c.devices[hid]
		if !ok {
			dev = &Device{Hid: hid}
			c.devices[hid] = dev
		}
		if isSystem {
			if dev.System != "" {
				return nil, dverr.New(dverr.Unknown, "device "+hid+" already has a system user")
			}
			dev.System = uid
		} else {
			dev.Users = append(dev.Users, uid)
		}
	}
	return u, nil
}

// SetDeviceInfo records the detected OS/package-manager for hid (spec §3's
// Device.DeviceInfo), filled in once the caller has probed the device via
// pm.Lookup.
func (c *Context) SetDeviceInfo(hid string, info DeviceInfo) error {
	dev, ok := c.devices[hid]
	if !ok {
		return dverr.New(dverr.NotFound, "device not found: "+hid)
	}
	dev.Info = info
	dev.infoSet = true
	return nil
}

// GetUser looks up a previously registered user, failing with NotFound
// otherwise (dv-wrap's context.rs get_user).
func (c *Context) GetUser(uid string) (*User, error) {
	u, ok := c.users[uid]
	if !ok {
		return nil, dverr.New(dverr.NotFound, "user not found: "+uid)
	}
	return u, nil
}

// GetDevice looks up a device by hid.
func (c *Context) GetDevice(hid string) (*Device, error) {
	d, ok := c.devices[hid]
	if !ok {
		return nil, dverr.New(dverr.NotFound, "device not found: "+hid)
	}
	return d, nil
}

// Exec runs script on uid (spec §4.8): with tty, it opens a pty and bridges
// it through the Context's interactor (raw mode, full duplex); otherwise it
// captures output non-interactively. A nonzero exit code fails the
// operation either way. Dry-run short-circuits to success without touching
// the backend, mirroring dv-wrap's exec.rs "if !ctx.dry_run" guard.
func (c *Context) Exec(ctx context.Context, uid string, script user.Script, tty bool) error {
	u, err := c.GetUser(uid)
	if err != nil {
		return err
	}
	if c.DryRun {
		return nil
	}
	if !tty {
		out, err := u.Facade.Exec(ctx, script)
		if err != nil {
			return err
		}
		if out.Code != 0 {
			return dverr.New(dverr.Unknown, "exec exited nonzero")
		}
		return nil
	}

	size, err := c.Interactor.WindowSize()
	if err != nil {
		return err
	}
	pty, err := u.Facade.Pty(ctx, script, size)
	if err != nil {
		return err
	}
	code, err := c.Interactor.Ask(ctx, pty)
	if err != nil {
		return err
	}
	if code != 0 {
		return dverr.New(dverr.Unknown, "exec exited nonzero")
	}
	return nil
}

// Write is a one-shot file-content write (spec §4.8).
func (c *Context) Write(ctx context.Context, uid, path string, content []byte) error {
	u, err := c.GetUser(uid)
	if err != nil {
		return err
	}
	if c.DryRun {
		return nil
	}
	f, err := u.Facade.Open(ctx, path, user.Write|user.Create|user.Truncate)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.Write(content); err != nil {
		return dverr.Wrap(dverr.IO, "write "+path, err)
	}
	return nil
}

// Read is a one-shot file-content read (spec §4.8).
func (c *Context) Read(ctx context.Context, uid, path string) ([]byte, error) {
	u, err := c.GetUser(uid)
	if err != nil {
		return nil, err
	}
	f, err := u.Facade.Open(ctx, path, user.Read)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	buf := make([]byte, 0, 4096)
	tmp := make([]byte, 4096)
	for {
		n, err := f.Read(tmp)
		if n > 0 {
			buf = append(buf, tmp[:n]...)
		}
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, dverr.Wrap(dverr.IO, "read "+path, err)
		}
	}
	return buf, nil
}

// Once guards a block keyed by (id, key): Test reports true when no
// Execute has succeeded since the guard was created or last cleared by
// Refresh; Execute writes an empty marker row (spec §4.8).
type Once struct {
	db  kv.DB
	id  string
	key string
}

// Once builds the (id, key) guard.
func (c *Context) Once(id, key string) Once { return Once{db: c.DB, id: id, key: key} }

// Test reports whether Execute has not yet succeeded for this guard.
func (o Once) Test(ctx context.Context) (bool, error) {
	_, _, found, err := o.db.Get(ctx, o.id, o.key)
	if err != nil {
		return false, err
	}
	return !found, nil
}

// Execute writes the marker row, making Test false until Refresh clears it.
func (o Once) Execute(ctx context.Context) error {
	return o.db.Set(ctx, o.id, o.key, "", "")
}

// Refresh deletes the marker row for (id, key), forcing the next Once.Test
// to report true again (spec §4.8).
func (c *Context) Refresh(ctx context.Context, id, key string) error {
	return c.DB.Del(ctx, id, key)
}

// Dl runs the conditional-GET download cache (spec §4.8), failing if no
// cache dir was configured. ttlSeconds, if non-nil, is the cache lifetime
// in seconds (spec §4.8: "dl(url, expire?)").
func (c *Context) Dl(ctx context.Context, url string, ttlSeconds *int64) (string, error) {
	if c.dl == nil {
		return "", dverr.New(dverr.Unknown, "cache dir not set, cannot download "+url)
	}
	if c.DryRun {
		return c.dl.Dir, nil
	}
	var ttl *time.Duration
	if ttlSeconds != nil {
		d := time.Duration(*ttlSeconds) * time.Second
		ttl = &d
	}
	return c.dl.Dl(ctx, url, ttl)
}

// PmInstall installs packages on uid's device through an interactive pty
// (spec §4.8's pm.install), using the device's detected package manager.
func (c *Context) PmInstall(ctx context.Context, uid string, packages []string, confirm bool) error {
	u, err := c.GetUser(uid)
	if err != nil {
		return err
	}
	manager, err := c.managerFor(u)
	if err != nil {
		return err
	}
	if c.DryRun {
		return nil
	}
	return pm.Install(ctx, u.Facade, c.Interactor, manager, packages, confirm)
}

// SvcEnable enables name at boot on uid's device (spec §4.8's svc catalog).
func (c *Context) SvcEnable(ctx context.Context, uid, name string) error {
	return c.svcOp(ctx, uid, name, svc.Enable)
}

// SvcRestart restarts name on uid's device.
func (c *Context) SvcRestart(ctx context.Context, uid, name string) error {
	return c.svcOp(ctx, uid, name, svc.Restart)
}

func (c *Context) svcOp(ctx context.Context, uid, name string, op func(context.Context, svc.Exec, svc.Manager, string) error) error {
	u, err := c.GetUser(uid)
	if err != nil {
		return err
	}
	manager, ok := svc.Lookup(u.Os())
	if !ok {
		return dverr.New(dverr.Unsupported, "no service manager for "+u.Os().String())
	}
	if c.DryRun {
		return nil
	}
	return op(ctx, u.Facade, manager, name)
}

func (c *Context) managerFor(u *User) (pm.Manager, error) {
	if hid := u.Hid(); hid != "" {
		if dev, ok := c.devices[hid]; ok && dev.infoSet {
			return dev.Info.PM, nil
		}
	}
	manager, ok := pm.Lookup(u.Os())
	if !ok {
		return pm.Manager{}, dverr.New(dverr.Unsupported, "no package manager for "+u.Os().String())
	}
	return manager, nil
}

// DotSync reconciles apps from the registered source catalogs into dstUID
// (spec §4.8's dotutil.sync).
func (c *Context) DotSync(ctx context.Context, dstUID string, apps []dotutil.App) error {
	dst, err := c.GetUser(dstUID)
	if err != nil {
		return err
	}
	var prompter sync.Prompter
	if c.Interactor != nil {
		prompter = c.Interactor
	}
	return c.dotutil.Sync(ctx, dst.Facade, dstUID, c.DB, prompter, dst.Os(), apps)
}

// DotUpload is dotutil's reverse direction (spec §4.8's dotutil.upload).
func (c *Context) DotUpload(ctx context.Context, srcUID string, apps []dotutil.App) error {
	src, err := c.GetUser(srcUID)
	if err != nil {
		return err
	}
	var prompter sync.Prompter
	if c.Interactor != nil {
		prompter = c.Interactor
	}
	return c.dotutil.Upload(ctx, src.Facade, srcUID, c.DB, prompter, src.Os(), apps)
}

// PtyWindowSize exposes the Context's interactor window size for callers
// that need to open a pty themselves (e.g. a CLI's own exec wrapper).
func (c *Context) PtyWindowSize() (ptyio.WindowSize, error) {
	return c.Interactor.WindowSize()
}
