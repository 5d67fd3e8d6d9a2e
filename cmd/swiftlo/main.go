/*******************************************************************************
*
* Copyright 2024 SAP SE
*
* Licensed under the Apache License, Version 2.0 (the "License");
* you may not use this file except in compliance with the License.
* You should have received a copy of the License along with this
* program. If not, you may obtain a copy of the License at
*
*     http://www.apache.org/licenses/LICENSE-2.0
*
* Unless required by applicable law or agreed to in writing, software
* distributed under the License is distributed on an "AS IS" BASIS,
* WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
* See the License for the specific language governing permissions and
* limitations under the License.
*
*******************************************************************************/

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sapcc/go-bits/httpext"
	"github.com/sapcc/go-bits/logg"
	"github.com/sapcc/go-bits/osext"

	"github.com/sapcc/swiftlo/internal/core"
	"github.com/sapcc/swiftlo/pkg/largeobject"
	"github.com/sapcc/swiftlo/pkg/swift"
)

func main() {
	logg.ShowDebug = osext.GetenvBool("SWIFTLO_DEBUG")

	//first argument must be task name
	if len(os.Args) < 2 {
		printUsageAndExit()
	}
	taskName, remainingArgs := os.Args[1], os.Args[2:]

	//select task
	var task func(context.Context, core.Configuration, []string) error
	switch taskName {
	case "upload-dlo":
		task = taskUploadDLO
	case "upload-slo":
		task = taskUploadSLO
	case "download":
		task = taskDownload
	case "show-manifest":
		task = taskShowManifest
	case "delete":
		task = taskDelete
	case "delete-with-content":
		task = taskDeleteWithContent
	case "get-metadata":
		task = taskGetMetadata
	case "set-metadata":
		task = taskSetMetadata
	default:
		printUsageAndExit()
	}

	//load configuration
	configPath := osext.GetenvOrDefault("SWIFTLO_CONFIG", "swiftlo.yaml")
	config, errs := core.LoadConfiguration(configPath)
	if !errs.IsEmpty() {
		for _, err := range errs {
			logg.Error(err.Error())
		}
		logg.Fatal("cannot load configuration from %s", configPath)
	}
	largeobject.RegisterMetrics(prometheus.DefaultRegisterer)

	ctx := httpext.ContextWithSIGINT(context.Background(), 0)

	//run task
	err := task(ctx, config, remainingArgs)
	if err != nil {
		logg.Fatal(err.Error())
	}
}

var usageMessage = strings.Replace(strings.TrimSpace(`
Usage:
\t%s (upload-dlo|upload-slo) <object> <file> [<chunk-size-bytes>]
\t%s download <object> <target-file|->
\t%s show-manifest (dlo|slo) <object>
\t%s (delete|delete-with-content) <object>
\t%s get-metadata <object>
\t%s set-metadata <object> <key>=<value>...

The configuration file is read from $SWIFTLO_CONFIG (default: ./swiftlo.yaml).
`), `\t`, "\t", -1) + "\n"

func printUsageAndExit() {
	fmt.Fprintln(os.Stderr, strings.Replace(usageMessage, "%s", os.Args[0], -1))
	os.Exit(1)
}

func printJSON(data any) error {
	buf, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(os.Stdout, string(buf))
	return err
}

////////////////////////////////////////////////////////////////////////////////
// tasks: upload-dlo, upload-slo

func taskUploadDLO(ctx context.Context, config core.Configuration, args []string) error {
	return upload(ctx, config, args, func(c *swift.Container, objectName string) largeobject.LargeObject {
		return largeobject.NewDynamicLargeObject(c, objectName, segmentPrefixFor(config, objectName), config.LargeObjectOptions())
	})
}

func taskUploadSLO(ctx context.Context, config core.Configuration, args []string) error {
	return upload(ctx, config, args, func(c *swift.Container, objectName string) largeobject.LargeObject {
		return largeobject.NewStaticLargeObject(c, objectName, config.LargeObjectOptions())
	})
}

// Each DLO gets its own prefix below the configured one, otherwise their
// segments would be concatenated into each other. Swift matches the prefix as
// a plain string, so it must end in a slash: "backup/" does not match the
// segments of "backup2".
func segmentPrefixFor(config core.Configuration, objectName string) string {
	prefix := config.SegmentPrefix
	if prefix == "" {
		prefix = largeobject.DefaultPrefix
	}
	return strings.TrimSuffix(prefix, "/") + "/" + objectName + "/"
}

func upload(ctx context.Context, config core.Configuration, args []string, build func(*swift.Container, string) largeobject.LargeObject) error {
	if len(args) != 2 && len(args) != 3 {
		printUsageAndExit()
	}
	objectName, filePath := args[0], args[1]
	chunkSize := config.SegmentSizeBytes
	if len(args) == 3 {
		var err error
		chunkSize, err = strconv.ParseInt(args[2], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid chunk size %q: %w", args[2], err)
		}
	}

	c, err := config.ConnectToSwift(ctx, true)
	if err != nil {
		return err
	}
	//failed uploads are counted as well
	defer dumpGeneratedPrometheusMetrics()

	result, err := build(c, objectName).CreateFromDisk(ctx, filePath, chunkSize)
	if err != nil {
		return err
	}
	logg.Info("uploaded %s into %s/%s as %d segments of at most %d bytes",
		filePath, c.Name(), objectName, len(result), largeobject.EffectiveChunkSize(chunkSize))
	return printJSON(result)
}

////////////////////////////////////////////////////////////////////////////////
// task: download

func taskDownload(ctx context.Context, config core.Configuration, args []string) error {
	if len(args) != 2 {
		printUsageAndExit()
	}
	objectName, targetPath := args[0], args[1]

	c, err := config.ConnectToSwift(ctx, false)
	if err != nil {
		return err
	}
	reader, err := c.Object(objectName).ContentStream(ctx)
	if err != nil {
		return err
	}
	defer reader.Close()

	var target io.Writer = os.Stdout
	if targetPath != "-" {
		file, err := os.Create(targetPath)
		if err != nil {
			return err
		}
		defer file.Close()
		target = file
	}
	n, err := io.Copy(target, reader)
	if err != nil {
		return err
	}
	logg.Debug("downloaded %d bytes from %s/%s", n, c.Name(), objectName)
	return nil
}

////////////////////////////////////////////////////////////////////////////////
// task: show-manifest

func taskShowManifest(ctx context.Context, config core.Configuration, args []string) error {
	if len(args) != 2 {
		printUsageAndExit()
	}
	kind, objectName := args[0], args[1]

	c, err := config.ConnectToSwift(ctx, false)
	if err != nil {
		return err
	}

	switch kind {
	case "dlo":
		dlo := largeobject.NewDynamicLargeObject(c, objectName, "", config.LargeObjectOptions())
		containerName, prefix, err := dlo.ManifestPointer(ctx)
		if err != nil {
			return err
		}
		dlo.SetPrefix(prefix)
		var segments []swift.ObjectInfo
		if containerName == c.Name() {
			segments, err = dlo.Segments(ctx)
			if err != nil {
				return err
			}
		}
		return printJSON(map[string]any{
			"container": containerName,
			"prefix":    prefix,
			"segments":  segments,
		})
	case "slo":
		slo := largeobject.NewStaticLargeObject(c, objectName, config.LargeObjectOptions())
		manifest, err := slo.ReadManifest(ctx)
		if err != nil {
			return err
		}
		return printJSON(map[string]any{
			"common_prefix": manifest.CommonPrefix(),
			"size_bytes":    manifest.TotalSizeBytes(),
			"segments":      manifest,
		})
	default:
		printUsageAndExit()
		return nil
	}
}

////////////////////////////////////////////////////////////////////////////////
// tasks: delete, delete-with-content

func taskDelete(ctx context.Context, config core.Configuration, args []string) error {
	if len(args) != 1 {
		printUsageAndExit()
	}
	c, err := config.ConnectToSwift(ctx, false)
	if err != nil {
		return err
	}
	err = c.Object(args[0]).Delete(ctx)
	if err != nil {
		return err
	}
	logg.Info("deleted %s/%s (segments of large objects were kept)", c.Name(), args[0])
	return nil
}

func taskDeleteWithContent(ctx context.Context, config core.Configuration, args []string) error {
	if len(args) != 1 {
		printUsageAndExit()
	}
	c, err := config.ConnectToSwift(ctx, false)
	if err != nil {
		return err
	}
	err = largeobject.NewStaticLargeObject(c, args[0], config.LargeObjectOptions()).DeleteWithContent(ctx)
	if err != nil {
		return err
	}
	logg.Info("deleted %s/%s including all segments", c.Name(), args[0])
	return nil
}

////////////////////////////////////////////////////////////////////////////////
// tasks: get-metadata, set-metadata

func taskGetMetadata(ctx context.Context, config core.Configuration, args []string) error {
	if len(args) != 1 {
		printUsageAndExit()
	}
	c, err := config.ConnectToSwift(ctx, false)
	if err != nil {
		return err
	}
	metadata, err := c.Object(args[0]).Metadata(ctx)
	if err != nil {
		return err
	}
	return printJSON(metadata)
}

func taskSetMetadata(ctx context.Context, config core.Configuration, args []string) error {
	if len(args) < 2 {
		printUsageAndExit()
	}

	//an empty value removes the key
	metadataRx := regexp.MustCompile(`^([^=]+)=(.*)$`)
	metadata := make(map[string]string)
	for _, arg := range args[1:] {
		match := metadataRx.FindStringSubmatch(arg)
		if match == nil {
			printUsageAndExit()
		}
		metadata[match[1]] = match[2]
	}

	c, err := config.ConnectToSwift(ctx, false)
	if err != nil {
		return err
	}
	sent, err := c.Object(args[0]).SetMetadata(ctx, metadata)
	if err != nil {
		return err
	}
	return printJSON(sent)
}

////////////////////////////////////////////////////////////////////////////////
// metrics

func dumpGeneratedPrometheusMetrics() {
	if path := os.Getenv("SWIFTLO_METRICS_FILE"); path != "" {
		err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
		if err != nil {
			logg.Error("cannot write metrics to %s: %s", path, err.Error())
		}
	}
	if !logg.ShowDebug {
		return
	}

	metricFamilies, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		logg.Error("error while gathering Prometheus metrics: " + err.Error())
	}
	for _, metricFamily := range metricFamilies {
		if !strings.HasPrefix(metricFamily.GetName(), "swiftlo_") {
			continue
		}
		for _, metric := range metricFamily.Metric {
			labels := make(map[string]string)
			for _, label := range metric.Label {
				labels[label.GetName()] = label.GetValue()
			}
			logg.Debug("metric %s %v %g", metricFamily.GetName(), labels, metric.GetCounter().GetValue())
		}
	}
}
