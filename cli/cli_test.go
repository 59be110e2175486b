package cli

import (
	"bytes"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	t.Parallel()

	want := &Options{
		Input:      "cam",
		Device:     "CPU",
		Batch:      1,
		DeviceVA:   "CPU",
		BatchVA:    1,
		Threshold:  0.5,
		AsyncDepth: 1,
	}
	if diff := cmp.Diff(want, Default()); diff != "" {
		t.Errorf("defaults mismatch (-want +got):\n%s", diff)
	}
}

func TestParse(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name        string
		args        []string
		expectExit  bool
		expectErr   bool
		expectUsage bool
		want        *Options
	}{
		{
			name: "model only keeps defaults",
			args: []string{"-m", "det.xml"},
			want: &Options{
				Input: "cam", Model: "det.xml", Device: "CPU", Batch: 1,
				DeviceVA: "CPU", BatchVA: 1, Threshold: 0.5, AsyncDepth: 1,
			},
		},
		{
			name: "every flag in gflags form",
			args: []string{
				"-i", "road.mp4",
				"-m=det.xml",
				"--m_va", "va.xml",
				"-d", "GPU",
				"-n=4",
				"-d_va", "HETERO:FPGA,CPU",
				"-n_va", "8",
				"-dyn_va",
				"-auto_resize=true",
				"--pc",
				"-c", "/opt/kernels.xml",
				"-l=/opt/libext.so",
				"-r",
				"-t", "0.25",
				"-no_wait",
				"-no_show=1",
				"-n_async", "3",
			},
			want: &Options{
				Input: "road.mp4", Model: "det.xml", ModelVA: "va.xml",
				Device: "GPU", Batch: 4, DeviceVA: "HETERO:FPGA,CPU", BatchVA: 8,
				DynamicBatchVA: true, AutoResize: true, PerfCounters: true,
				CustomGPU: "/opt/kernels.xml", CustomCPU: "/opt/libext.so",
				Raw: true, Threshold: 0.25, NoWait: true, NoShow: true, AsyncDepth: 3,
			},
		},
		{
			name: "boolean negation forms",
			args: []string{"-m", "det.xml", "-r=false", "-nopc", "-no_show=0"},
			want: &Options{
				Input: "cam", Model: "det.xml", Device: "CPU", Batch: 1,
				DeviceVA: "CPU", BatchVA: 1, Threshold: 0.5, AsyncDepth: 1,
			},
		},
		{
			name: "later negation wins",
			args: []string{"-m", "det.xml", "-r", "-nor", "-pc", "-pc=false", "-no_show", "-nono_show"},
			want: &Options{
				Input: "cam", Model: "det.xml", Device: "CPU", Batch: 1,
				DeviceVA: "CPU", BatchVA: 1, Threshold: 0.5, AsyncDepth: 1,
			},
		},
		{
			name: "later setting wins over negation",
			args: []string{"-m", "det.xml", "-nor", "-r", "-pc=0", "--pc=true"},
			want: &Options{
				Input: "cam", Model: "det.xml", Device: "CPU", Batch: 1,
				DeviceVA: "CPU", BatchVA: 1, Threshold: 0.5, AsyncDepth: 1,
				Raw: true, PerfCounters: true,
			},
		},
		{
			name:        "help exits cleanly",
			args:        []string{"-h"},
			expectExit:  true,
			expectUsage: true,
		},
		{
			name:        "help wins over missing model",
			args:        []string{"--h", "-n", "0"},
			expectExit:  true,
			expectUsage: true,
		},
		{
			name:      "missing model",
			args:      []string{"-i", "road.mp4"},
			expectErr: true,
		},
		{
			name:        "unknown flag",
			args:        []string{"-m", "det.xml", "-frobnicate"},
			expectErr:   true,
			expectUsage: true,
		},
		{
			name:        "negative batch is rejected by the parser",
			args:        []string{"-m", "det.xml", "-n", "-1"},
			expectErr:   true,
			expectUsage: true,
		},
		{
			name:      "zero async depth",
			args:      []string{"-m", "det.xml", "-n_async", "0"},
			expectErr: true,
		},
		{
			name:      "threshold out of range",
			args:      []string{"-m", "det.xml", "-t", "1.5"},
			expectErr: true,
		},
		{
			name:      "threshold is not a number",
			args:      []string{"-m", "det.xml", "-t", "NaN"},
			expectErr: true,
		},
		{
			name:        "batch overflows uint32",
			args:        []string{"-m", "det.xml", "-n", "18446744073709551615"},
			expectErr:   true,
			expectUsage: true,
		},
		{
			name:      "batch above limit",
			args:      []string{"-m", "det.xml", "-n", "1000000000"},
			expectErr: true,
		},
		{
			name:      "attributes batch above limit",
			args:      []string{"-m", "det.xml", "-n_va", "1025"},
			expectErr: true,
		},
		{
			name:      "async depth above limit",
			args:      []string{"-m", "det.xml", "-n_async", "65"},
			expectErr: true,
		},
		{
			name:        "invalid boolean value",
			args:        []string{"-m", "det.xml", "-r=maybe"},
			expectErr:   true,
			expectUsage: true,
		},
		{
			name:      "relative custom library",
			args:      []string{"-m", "det.xml", "-l", "libext.so"},
			expectErr: true,
		},
		{
			name:        "stray positional argument",
			args:        []string{"-m", "det.xml", "extra"},
			expectErr:   true,
			expectUsage: true,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			out := &bytes.Buffer{}
			opts, shouldExit, err := Parse(tc.args, out)

			if tc.expectUsage {
				require.Contains(t, out.String(), ProgramName+" [OPTION]")
			}
			if tc.expectErr {
				require.Error(t, err)
				var exitErr *ExitError
				require.True(t, errors.As(err, &exitErr), "expected an ExitError, got %T", err)
				require.Equal(t, ExitUsage, exitErr.Code)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.expectExit, shouldExit)

			if tc.want != nil {
				if diff := cmp.Diff(tc.want, opts); diff != "" {
					t.Errorf("Options mismatch (-want +got):\n%s", diff)
				}
			}
		})
	}
}

func TestParse_MissingModelMessage(t *testing.T) {
	t.Parallel()

	_, _, err := Parse([]string{}, &bytes.Buffer{})
	require.Error(t, err)
	require.Equal(t, ErrModelNotSet.Error(), err.Error())
}

func TestNormalizeArgs(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		in   []string
		want []string
	}{
		{"single dash long name", []string{"-m_va", "a.xml"}, []string{"--m_va=a.xml"}},
		{"value with dash", []string{"-i", "-odd"}, []string{"--i=-odd"}},
		{"equals form", []string{"-t=0.7"}, []string{"--t=0.7"}},
		{"bool true", []string{"-pc=true"}, []string{"--pc"}},
		{"bool false dropped", []string{"-pc=false"}, []string{}},
		{"negated bool dropped", []string{"-nono_show"}, []string{}},
		{"negation after set", []string{"-r", "-nor"}, []string{}},
		{"set after negation", []string{"-nor", "-r=1"}, []string{"--r"}},
		{"bools before double dash", []string{"-r", "--", "-x"}, []string{"--r", "--", "-x"}},
		{"unknown passes through", []string{"-zz"}, []string{"-zz"}},
		{"double dash stops", []string{"--", "-m", "x"}, []string{"--", "-m", "x"}},
		{"trailing flag without value", []string{"-d"}, []string{"--d"}},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := normalizeArgs(tc.in)
			require.NoError(t, err)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("normalizeArgs mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
