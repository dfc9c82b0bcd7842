package main

import (
	"context"
	"net"
	"os"
	"os/exec"

	lccgroups "github.com/opencontainers/runc/libcontainer/cgroups"
	"google.golang.org/grpc"

	"github.com/Eason0729/mdoj/judger/internal/app/judgeserver"
	"github.com/Eason0729/mdoj/judger/internal/pkg/jail"
	"github.com/Eason0729/mdoj/judger/internal/pkg/lang"
	"github.com/Eason0729/mdoj/judger/internal/pkg/sandbox"
	"github.com/Eason0729/mdoj/judger/pkg/judgepb"
	"github.com/Eason0729/mdoj/judger/pkg/judgerconf"
	"github.com/Eason0729/mdoj/judger/pkg/sylog"
)

// isolatorBinary is the external nsjail-compatible binary C4 spawns
// through. Looked up on $PATH at startup so a missing isolator fails
// fast (exit code 3) rather than surfacing as a confusing per-run
// Internal error on the first judge request.
const isolatorBinary = "nsjail"

// configError / pluginError / isolatorError let main() in main.go map a
// daemon startup failure to the right exit code without runDaemon
// needing to call os.Exit itself (cobra's RunE contract expects a
// returned error).
type configError struct{ error }
type pluginError struct{ error }
type isolatorError struct{ error }

func exitCodeFor(err error) int {
	switch err.(type) {
	case *configError:
		return exitConfigError
	case *pluginError:
		return exitPluginError
	case *isolatorError:
		return exitIsolatorMissing
	default:
		return exitConfigError
	}
}

func runDaemon(ctx context.Context) error {
	cfg, err := judgerconf.Parse(configPath)
	if err != nil {
		return &configError{err}
	}
	judgerconf.SetCurrentConfig(cfg)

	// JUDGERD_MESSAGELEVEL, if set, already won at sylog's init(); the
	// config file's log.level only applies when no env override exists.
	if _, overridden := os.LookupEnv("JUDGERD_MESSAGELEVEL"); !overridden && cfg.Log.Level != 0 {
		sylog.SetLevel(cfg.Log.Level)
	}

	registry, err := lang.Load(cfg.Plugin.Path)
	if err != nil {
		return &pluginError{err}
	}

	isolatorPath, err := exec.LookPath(isolatorBinary)
	if err != nil {
		return &isolatorError{err}
	}

	cgroupVer := jail.CgroupV1
	if lccgroups.IsCgroup2UnifiedMode() {
		cgroupVer = jail.CgroupV2
	}

	daemon := sandbox.NewDaemon(cfg.Platform.AvailableMemory, "/var/lib/judgerd/runs", isolatorPath, cgroupVer)
	srv := judgeserver.New(registry, daemon, cfg.Secret, cfg.Platform.AvailableMemory, cfg.AccuracyUs(), cfg.Platform.CPUTimeMultiplier)

	lis, err := net.Listen("tcp", ":9527")
	if err != nil {
		return &configError{err}
	}

	grpcServer := grpc.NewServer()
	judgepb.RegisterJudgeServer(grpcServer, srv)

	go func() {
		<-ctx.Done()
		sylog.Debugf("judgerd: stopping gRPC server")
		grpcServer.GracefulStop()
	}()

	sylog.Infof("judgerd: serving on %s", lis.Addr())
	return grpcServer.Serve(lis)
}
