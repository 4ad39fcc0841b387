// Package main 提供 dnspub 命令行入口
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/dep2p/go-dnspub"
	"github.com/dep2p/go-dnspub/config"
	"github.com/dep2p/go-dnspub/internal/dnstree"
	"github.com/dep2p/go-dnspub/internal/provider/memory"
	"github.com/dep2p/go-dnspub/internal/resolver"
	pkgif "github.com/dep2p/go-dnspub/pkg/interfaces"
	"github.com/dep2p/go-dnspub/pkg/lib/log"
)

var logger = log.Logger("dnspub/cmd")

// command 子命令
type command struct {
	name  string
	usage string
	run   func(args []string, out io.Writer) error
}

var commands = []command{
	{"run", "按固定延迟周期发布（守护进程）", cmdRun},
	{"build", "按当前节点构建树并打印 TXT 记录，不写入 DNS", cmdBuild},
	{"publish", "立即发布一次", cmdPublish},
	{"verify", "通过 DNS 解析并校验 tree:// 地址", cmdVerify},
	{"delete", "删除域名下全部树记录", cmdDelete},
	{"keygen", "生成根签名私钥", cmdKeygen},
	{"version", "显示版本信息", cmdVersion},
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	if len(args) == 0 || args[0] == "-h" || args[0] == "-help" || args[0] == "help" {
		printHelp(out)
		return nil
	}
	for _, c := range commands {
		if c.name == args[0] {
			return c.run(args[1:], out)
		}
	}
	printHelp(out)
	return fmt.Errorf("未知命令 %q", args[0])
}

func printHelp(out io.Writer) {
	fmt.Fprintln(out, "用法: dnspub <命令> [参数]")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "命令:")
	for _, c := range commands {
		fmt.Fprintf(out, "  %-8s %s\n", c.name, c.usage)
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, "使用 dnspub <命令> -h 查看命令参数。凭据建议通过 DNSPUB_ 环境变量传入。")
}

// ═══════════════════════════════════════════════════════════════════════════
// run
// ═══════════════════════════════════════════════════════════════════════════

func cmdRun(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	cf := registerConfigFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := cf.load()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("启动 dnspub", "version", dnspub.Version, "commit", dnspub.GitCommit, "buildDate", dnspub.BuildDate)
	node, err := dnspub.Start(ctx, dnspub.WithConfig(cfg))
	if errors.Is(err, dnspub.ErrPublishDisabled) {
		fmt.Fprintln(out, "DNS 发布未启用（discovery.enable 与 publish.enable 须同时打开），退出")
		return nil
	}
	if err != nil {
		return fmt.Errorf("启动失败: %w", err)
	}

	fmt.Fprintf(out, "📦 %s\n", dnspub.VersionInfo())
	fmt.Fprintf(out, "发布地址: %s\n", node.URL())
	fmt.Fprintf(out, "首次发布: %s 后，间隔 %s\n", cfg.Publish.InitialDelay, cfg.Publish.Delay)
	fmt.Fprintln(out, "按 Ctrl+C 退出")

	<-ctx.Done()
	fmt.Fprintln(out, "\n正在停止...")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Minute)
	defer stopCancel()
	return node.Stop(stopCtx)
}

// ═══════════════════════════════════════════════════════════════════════════
// build / publish / delete（手动模式）
// ═══════════════════════════════════════════════════════════════════════════

func cmdBuild(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("build", flag.ContinueOnError)
	cf := registerConfigFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := cf.load()
	if err != nil {
		return err
	}
	// 构建不写入 DNS，不需要厂商凭据
	cfg.Publish.Type = config.DNSTypeMemory

	ctx := context.Background()
	node, err := dnspub.Start(ctx, dnspub.WithConfig(cfg), dnspub.WithManual(), dnspub.WithBackend(memory.New()))
	if err != nil {
		return err
	}
	defer func() { _ = node.Stop(context.Background()) }()

	tree, err := node.Preview(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "; %s\n", node.URL())
	fmt.Fprintf(out, "; seq=%d nodes=%d links=%d entries=%d\n", tree.Seq(), len(tree.Nodes()), len(tree.Links()), tree.Len())
	printRecords(out, node.Domain(), tree.ToTXT())
	return nil
}

func cmdPublish(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("publish", flag.ContinueOnError)
	cf := registerConfigFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := cf.load()
	if err != nil {
		return err
	}

	ctx := context.Background()
	node, err := dnspub.Start(ctx, dnspub.WithConfig(cfg), dnspub.WithManual())
	if err != nil {
		return err
	}
	defer func() { _ = node.Stop(context.Background()) }()

	result, err := node.PublishNow(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s: %s\n", node.URL(), result)
	return nil
}

func cmdDelete(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("delete", flag.ContinueOnError)
	cf := registerConfigFlags(fs)
	yes := fs.Bool("yes", false, "确认删除")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := cf.load()
	if err != nil {
		return err
	}
	if !*yes {
		return fmt.Errorf("将删除 %s 下全部树记录，使用 -yes 确认", cfg.Publish.Domain)
	}

	ctx := context.Background()
	node, err := dnspub.Start(ctx, dnspub.WithConfig(cfg), dnspub.WithManual())
	if err != nil {
		return err
	}
	defer func() { _ = node.Stop(context.Background()) }()

	existed, err := node.DeleteDomain(ctx)
	if err != nil {
		return err
	}
	if existed {
		fmt.Fprintf(out, "已删除 %s 下的树记录\n", node.Domain())
	} else {
		fmt.Fprintf(out, "%s 下没有树记录\n", node.Domain())
	}
	return nil
}

// ═══════════════════════════════════════════════════════════════════════════
// verify
// ═══════════════════════════════════════════════════════════════════════════

func cmdVerify(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	servers := fs.String("server", "", "DNS 服务器 host:port，逗号分隔（默认读取 /etc/resolv.conf）")
	secret := fs.String("secret", "", "私有叶子的共享密钥")
	timeout := fs.Duration("timeout", 5*time.Second, "单次查询超时")
	verbose := fs.Bool("v", false, "列出全部节点")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("用法: dnspub verify [参数] tree://<key>@<domain>")
	}

	rcfg := resolver.DefaultConfig()
	rcfg.Timeout = *timeout
	rcfg.CacheSize = 0
	if *servers != "" {
		rcfg.Servers = strings.Split(*servers, ",")
	}
	r, err := resolver.New(rcfg)
	if err != nil {
		return err
	}

	var opts []dnstree.ResolveOption
	if *secret != "" {
		cipher, err := dnstree.NewLeafCipher([]byte(*secret))
		if err != nil {
			return err
		}
		opts = append(opts, dnstree.WithResolveSecret(cipher))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	tree, err := dnstree.Resolve(ctx, r, fs.Arg(0), opts...)
	if err != nil {
		return fmt.Errorf("校验失败: %w", err)
	}
	fmt.Fprintf(out, "✓ %s\n", fs.Arg(0))
	fmt.Fprintf(out, "  seq=%d entries=%d nodes=%d links=%d\n", tree.Root.Seq, tree.Entries, len(tree.Nodes), len(tree.Links))
	for _, l := range tree.Links {
		fmt.Fprintf(out, "  link %s\n", l)
	}
	if *verbose {
		for _, n := range tree.Nodes {
			fmt.Fprintf(out, "  node %s\n", n)
		}
	}
	return nil
}

// ═══════════════════════════════════════════════════════════════════════════
// keygen / version
// ═══════════════════════════════════════════════════════════════════════════

func cmdKeygen(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("keygen", flag.ContinueOnError)
	domain := fs.String("domain", "", "同时打印该域名的 tree:// 地址")
	if err := fs.Parse(args); err != nil {
		return err
	}

	key, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "private_key: %x\n", key.Serialize())
	fmt.Fprintf(out, "public_key:  %x\n", key.PubKey().SerializeCompressed())
	if *domain != "" {
		link, err := dnstree.NewLink(key.PubKey(), *domain)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "url:         %s\n", link)
	}
	return nil
}

func cmdVersion(_ []string, out io.Writer) error {
	fmt.Fprintln(out, dnspub.VersionInfo())
	return nil
}

// printRecords 按 名字 排序打印区域文件格式的 TXT 记录，根在最前
func printRecords(out io.Writer, domain string, records map[string]string) {
	names := make([]string, 0, len(records))
	for name := range records {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if (names[i] == pkgif.RootName) != (names[j] == pkgif.RootName) {
			return names[i] == pkgif.RootName
		}
		return names[i] < names[j]
	})
	for _, name := range names {
		fqdn := domain + "."
		if name != pkgif.RootName {
			fqdn = name + "." + fqdn
		}
		fmt.Fprintf(out, "%s\tIN\tTXT\t%q\n", fqdn, records[name])
	}
}
